package domain

import "errors"

// Error kinds the pipeline core defines. Transport failures are normalized
// into these by the provider adapters; nothing else crosses a priority
// boundary.
var (
	// ErrNoCredentialAvailable fires when every credential for a provider is
	// exhausted in both the minute and the day window. Observed across all
	// providers it hard-stops the run.
	ErrNoCredentialAvailable = errors.New("no credential available")

	// ErrBudgetExhausted means the shared API-call budget hit zero. Remaining
	// API-dependent work is skipped, not failed.
	ErrBudgetExhausted = errors.New("api call budget exhausted")

	// ErrInsufficientData is returned by the indicator and ratio engines when
	// the input history is too short. Outputs are emitted as null.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrSchemaMismatch is raised by adapter normalization when a provider
	// response does not have the expected shape. Treated as transient for
	// fallback but surfaced in the run summary.
	ErrSchemaMismatch = errors.New("provider schema mismatch")

	// ErrConfiguration is fatal at startup only.
	ErrConfiguration = errors.New("configuration error")
)
