// Package database implements durable candle and state snapshot storage
// backed by rqlite.
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
	"github.com/rsowell/replay/shared"
)

const (
	// stateID keys the singleton state snapshot row.
	stateID = "trader"

	// SQL statements.
	createCandleTableSQL = "CREATE TABLE IF NOT EXISTS candle (timeframe TEXT, timestamp INTEGER, open REAL, high REAL, low REAL, close REAL, volume REAL, market TEXT, PRIMARY KEY(timeframe, timestamp))"
	createStateTableSQL  = "CREATE TABLE IF NOT EXISTS state (id TEXT PRIMARY KEY, version INTEGER, data TEXT, updatedon INTEGER)"
	upsertCandleSQL      = "INSERT INTO candle(timeframe, timestamp, open, high, low, close, volume, market) VALUES(?,?,?,?,?,?,?,?) ON CONFLICT(timeframe, timestamp) DO UPDATE SET open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close, volume = excluded.volume, market = excluded.market"
	rangeScanSQL         = "SELECT timeframe, timestamp, open, high, low, close, volume, market FROM candle WHERE timeframe = ? ORDER BY timestamp DESC LIMIT ?"
	firstCandleTimeSQL   = "SELECT MIN(timestamp) AS timestamp FROM candle WHERE timeframe = ?"
	lastCandleTimeSQL    = "SELECT MAX(timestamp) AS timestamp FROM candle WHERE timeframe = ?"
	upsertStateSQL       = "INSERT INTO state(id, version, data, updatedon) VALUES(?,?,?,?) ON CONFLICT(id) DO UPDATE SET version = excluded.version, data = excluded.data, updatedon = excluded.updatedon"
	findStateSQL         = "SELECT data FROM state WHERE id = ?"
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the CandleStorer and StateStore interfaces.
var _ shared.CandleStorer = (*Database)(nil)
var _ shared.StateStore = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createCandleTableSQL},
		{SQL: createStateTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// rowFloat extracts a float column from the provided row.
func rowFloat(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// rowInt extracts an integer column from the provided row.
func rowInt(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

// rowString extracts a string column from the provided row.
func rowString(row map[string]any, key string) string {
	v, _ := row[key].(string)
	return v
}

// UpsertCandles stores the provided candles, replacing entries sharing a
// (timeframe, timestamp) key. Safe to repeat.
func (db *Database) UpsertCandles(ctx context.Context, candles []shared.Candlestick) error {
	if len(candles) == 0 {
		return nil
	}

	stmts := make(rqlitehttp.SQLStatements, 0, len(candles))
	for idx := range candles {
		candle := &candles[idx]

		err := candle.Validate()
		if err != nil {
			db.cfg.Logger.Error().Msgf("rejecting malformed candle: %s", spew.Sdump(candle))
			return fmt.Errorf("validating candle: %w", err)
		}

		stmts = append(stmts, &rqlitehttp.SQLStatement{
			SQL: upsertCandleSQL,
			PositionalParams: []any{candle.Timeframe.String(), candle.Date.Unix(), candle.Open,
				candle.High, candle.Low, candle.Close, candle.Volume, candle.Market},
		})
	}

	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("upserting candles: %d -> %s", idx, errStr)
	}

	return nil
}

// RangeScan returns up to limit stored candles for the timeframe, ordered
// newest to oldest.
func (db *Database) RangeScan(ctx context.Context, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	resp, err := db.client.QuerySingle(ctx, rangeScanSQL, timeframe.String(), limit)
	if err != nil {
		return nil, err
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 {
		return nil, nil
	}

	rows := results[0].Rows
	candles := make([]shared.Candlestick, 0, len(rows))
	for idx := range rows {
		tf, err := shared.ParseTimeframe(rowString(rows[idx], "timeframe"))
		if err != nil {
			return nil, fmt.Errorf("scanning candle: %w", err)
		}

		candles = append(candles, shared.Candlestick{
			Timeframe: tf,
			Date:      time.Unix(rowInt(rows[idx], "timestamp"), 0).UTC(),
			Open:      rowFloat(rows[idx], "open"),
			High:      rowFloat(rows[idx], "high"),
			Low:       rowFloat(rows[idx], "low"),
			Close:     rowFloat(rows[idx], "close"),
			Volume:    rowFloat(rows[idx], "volume"),
			Market:    rowString(rows[idx], "market"),
		})
	}

	return candles, nil
}

// candleTime runs the provided aggregate timestamp query for the timeframe.
func (db *Database) candleTime(ctx context.Context, sql string, timeframe shared.Timeframe) (time.Time, error) {
	resp, err := db.client.QuerySingle(ctx, sql, timeframe.String())
	if err != nil {
		return time.Time{}, err
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return time.Time{}, nil
	}

	ts := rowInt(results[0].Rows[0], "timestamp")
	if ts == 0 {
		return time.Time{}, nil
	}

	return time.Unix(ts, 0).UTC(), nil
}

// FirstCandleTime returns the earliest stored candle time for the timeframe,
// or the zero time when none exist.
func (db *Database) FirstCandleTime(ctx context.Context, timeframe shared.Timeframe) (time.Time, error) {
	return db.candleTime(ctx, firstCandleTimeSQL, timeframe)
}

// LastCandleTime returns the latest stored candle time for the timeframe,
// or the zero time when none exist.
func (db *Database) LastCandleTime(ctx context.Context, timeframe shared.Timeframe) (time.Time, error) {
	return db.candleTime(ctx, lastCandleTimeSQL, timeframe)
}

// SaveState persists the provided state snapshot.
func (db *Database) SaveState(ctx context.Context, state *shared.StateSnapshot) error {
	b, err := shared.EncodeState(state)
	if err != nil {
		return err
	}

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              upsertStateSQL,
			PositionalParams: []any{stateID, state.Version, string(b), state.UpdatedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		db.cfg.Logger.Error().Msgf("failed state snapshot write: %s", spew.Sdump(state))
		return fmt.Errorf("saving state %s: %d -> %s", stateID, idx, errStr)
	}

	return nil
}

// LoadState loads the persisted state snapshot, or nil when none exists.
func (db *Database) LoadState(ctx context.Context) (*shared.StateSnapshot, error) {
	resp, err := db.client.QuerySingle(ctx, findStateSQL, stateID)
	if err != nil {
		return nil, err
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return nil, nil
	}

	data := rowString(results[0].Rows[0], "data")
	if data == "" {
		return nil, nil
	}

	return shared.DecodeState([]byte(data))
}
