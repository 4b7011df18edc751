package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the configuration struct for the service.
type Config struct {
	// Network is the network the tracked pool trades on.
	Network string
	// Pool is the tracked pool address.
	Pool string
	// Market is the market label for the tracked pool.
	Market string
	// Timeframe is the evaluated candle timeframe.
	Timeframe string
	// HistoryLimit is the candle window size kept warm for evaluation.
	HistoryLimit int
	// Strategy is the registered strategy to run.
	Strategy string
	// PositionSize is the fixed per-trade size.
	PositionSize float64
	// CheckInterval is the live evaluation interval.
	CheckInterval string
	// Backtest is the backtesting flag.
	Backtest bool
	// StartingBalance is the virtual balance for backtests.
	StartingBalance float64
	// ForceClose closes a dangling backtest position at the final close.
	ForceClose bool
	// DatabaseEndpoint represents the database connection endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Network == "" {
		errs = errors.Join(errs, fmt.Errorf("network cannot be an empty string"))
	}
	if cfg.Pool == "" {
		errs = errors.Join(errs, fmt.Errorf("pool cannot be an empty string"))
	}
	if cfg.Timeframe == "" {
		errs = errors.Join(errs, fmt.Errorf("timeframe cannot be an empty string"))
	}
	if cfg.Strategy == "" {
		errs = errors.Join(errs, fmt.Errorf("strategy cannot be an empty string"))
	}
	if cfg.HistoryLimit <= 0 {
		errs = errors.Join(errs, fmt.Errorf("history limit must be positive"))
	}
	if cfg.PositionSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("position size must be positive"))
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}

	switch cfg.Backtest {
	case true:
		if cfg.StartingBalance <= 0 {
			errs = errors.Join(errs, fmt.Errorf("starting balance must be positive"))
		}
	case false:
		if cfg.CheckInterval == "" {
			errs = errors.Join(errs, fmt.Errorf("check interval cannot be an empty string"))
		}
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("network", &cfg.Network, "the network the tracked pool trades on")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("pool", &cfg.Pool, "the tracked pool address")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("market", &cfg.Market, "the market label for the tracked pool")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("timeframe", &cfg.Timeframe, "the evaluated candle timeframe")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("historylimit", &cfg.HistoryLimit, "the candle window size kept warm for evaluation")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("strategy", &cfg.Strategy, "the registered strategy to run")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("positionsize", &cfg.PositionSize, "the fixed per-trade size")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("checkinterval", &cfg.CheckInterval, "the live evaluation interval")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtest", &cfg.Backtest, "the backtest flag")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("startingbalance", &cfg.StartingBalance, "the virtual balance for backtests")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("forceclose", &cfg.ForceClose, "close a dangling backtest position at the final close")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("databaseendpoint", &cfg.DatabaseEndpoint, "the database connection endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("databaseuser", &cfg.DatabaseUser, "the database user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("databasepass", &cfg.DatabasePass, "the database user pass")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
