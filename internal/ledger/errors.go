package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientHoldings is the cause of a sell for more units than are held.
	ErrInsufficientHoldings = errors.New("not enough holdings to sell")

	// ErrMissingField is the cause of a transaction lacking a field its type requires.
	ErrMissingField = errors.New("missing required field")

	// ErrNoTransactions is returned by Replay when there is nothing to replay.
	ErrNoTransactions = errors.New("no transactions to replay")
)

// ValidationError reports a transaction the ledger refuses to apply.
// The ledger is left exactly as it was before the offending transaction.
type ValidationError struct {
	TxID   int64
	Date   time.Time
	Type   models.TransactionType
	Symbol string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s on %s", e.Type, e.Date.Format("2006-01-02"))
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.TxID != 0 {
		msg += fmt.Sprintf(" (tx %d)", e.TxID)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %v", msg, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes both ErrValidation and the specific cause to errors.Is.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func newValidationError(tx *models.Transaction, cause error, reason string) *ValidationError {
	return &ValidationError{
		TxID:   tx.ID,
		Date:   tx.Date,
		Type:   tx.Type,
		Symbol: tx.Symbol,
		Reason: reason,
		Err:    cause,
	}
}
