package shared

import "errors"

// Error kinds surfaced by the engine. Callers match them with errors.Is;
// wrapped messages carry the specifics.
var (
	// ErrInsufficientHistory indicates a candle window request larger than
	// what is available after backfill.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInsufficientData indicates an indicator short of its required periods.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrConfig indicates invalid component configuration.
	ErrConfig = errors.New("config error")
	// ErrInvalidTransition indicates a position state machine invariant violation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrExecution indicates the execution collaborator failed. The position
	// is unchanged and the failure is not retried within the same tick.
	ErrExecution = errors.New("execution failure")
	// ErrIngestion indicates backfill exhausted its retries. Partial data is
	// still returned alongside it.
	ErrIngestion = errors.New("ingestion failure")
)
