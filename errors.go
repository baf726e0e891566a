package treasury

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("treasury: not found")
	ErrAlreadyExists = errors.New("treasury: already exists")
	ErrInvalidInput  = errors.New("treasury: invalid input")
	ErrInvalidAmount = errors.New("treasury: amount must be positive")

	// Wallet and budget errors
	ErrWalletNotFound    = errors.New("treasury: wallet not found")
	ErrCampaignNotFound  = errors.New("treasury: campaign not found")
	ErrCampaignNotActive = errors.New("treasury: campaign is not active")
	ErrInsufficientFunds = errors.New("treasury: insufficient wallet funds")
	ErrBudgetExceeded    = errors.New("treasury: campaign budget exceeded")
	ErrNoBudgetLock      = errors.New("treasury: no budget lock for campaign")

	// Journal errors
	ErrEntryNotFound   = errors.New("treasury: journal entry not found")
	ErrAlreadyReversed = errors.New("treasury: journal entry already reversed")
	ErrDuplicateEntry  = errors.New("treasury: duplicate journal entry")

	// Payout errors
	ErrPayoutNotFound         = errors.New("treasury: payout not found")
	ErrInvalidTransition      = errors.New("treasury: invalid payout status transition")
	ErrCreatorNotFound        = errors.New("treasury: creator not found")
	ErrReserveAlreadyReturned = errors.New("treasury: payout reserve already returned")

	// Store errors
	ErrStoreClosed       = errors.New("treasury: store is closed")
	ErrTransactionFailed = errors.New("treasury: transaction failed")
	ErrMigrationFailed   = errors.New("treasury: migration failed")

	// ErrOperationFailed is matched by every infrastructure failure
	// surfaced from an engine operation.
	ErrOperationFailed = errors.New("treasury: operation failed")
)

var businessErrors = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrInvalidInput,
	ErrInvalidAmount,
	ErrWalletNotFound,
	ErrCampaignNotFound,
	ErrCampaignNotActive,
	ErrInsufficientFunds,
	ErrBudgetExceeded,
	ErrNoBudgetLock,
	ErrEntryNotFound,
	ErrAlreadyReversed,
	ErrDuplicateEntry,
	ErrPayoutNotFound,
	ErrInvalidTransition,
	ErrCreatorNotFound,
	ErrReserveAlreadyReturned,
}

// OpError wraps an infrastructure failure. Its message is deliberately
// opaque; the cause is reachable through errors.Unwrap.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("treasury: %s: operation failed", e.Op)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error { return e.Err }

// Is makes every OpError match ErrOperationFailed.
func (e *OpError) Is(target error) bool { return target == ErrOperationFailed }

// opError passes business errors through unchanged and wraps anything else.
func opError(op string, err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &OpError{Op: op, Err: err}
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("treasury: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets validation failures match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "treasury: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("treasury: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrPayoutNotFound) ||
		errors.Is(err, ErrCreatorNotFound)
}

// IsBusinessError reports whether err is a domain rule violation rather
// than an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, context.DeadlineExceeded)
}
