// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnauthorized means the caller lacks the permission for the branch
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the referenced entity does not exist
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input (line items, amounts, parties)
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports an illegal order status change. The order
// is left unchanged; retrying without changing state does not help.
type InvalidTransitionError struct {
	OrderID uuid.UUID
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

// InsufficientStockError reports that a confirmation asked for more units
// than the seller branch holds for a (variant, DOT) lot.
type InsufficientStockError struct {
	BranchID  uuid.UUID
	VariantID uuid.UUID
	DOTCode   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s dot %s: requested %d, available %d",
		e.VariantID, e.DOTCode, e.Requested, e.Available)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var t *InvalidTransitionError
	return errors.As(err, &t)
}

// IsInsufficientStock reports whether err is an InsufficientStockError
func IsInsufficientStock(err error) bool {
	var t *InsufficientStockError
	return errors.As(err, &t)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}
