// Package apperr defines the error taxonomy shared by the verification
// engine. Callers classify failures with errors.Is against these
// sentinels; packages wrap them with context via fmt.Errorf and %w.
package apperr

import "errors"

var (
	// ErrNotFound indicates the entity or workflow step does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is illegal for the current
	// step or ledger state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition indicates a status change absent from the
	// transition table.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidScope indicates a verification scope with no applicable
	// activities.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidArgument indicates a request carried a value outside its
	// closed enum, rejected before any state is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPreconditionFailed indicates scoring was attempted without
	// enough completed steps.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrForbidden indicates the actor may not access the record.
	ErrForbidden = errors.New("forbidden")

	// ErrPaymentRequired indicates workflow activity was attempted while
	// the verification fee is still outstanding.
	ErrPaymentRequired = errors.New("payment required")

	// ErrVersionConflict indicates a concurrent writer updated the
	// aggregate first. Mutating operations retry on it.
	ErrVersionConflict = errors.New("version conflict")
)
