package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// ErrStoreUnavailable is matched by every *StoreError via errors.Is.
var ErrStoreUnavailable = errors.New("store unavailable")

// NotFoundError is returned when no request has the given ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("help request not found: %s", e.ID)
}

// ValidationError is returned when an input is rejected before touching the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AlreadyResolvedError is returned when answering a request that has left pending.
// Status is the terminal status the request is in.
type AlreadyResolvedError struct {
	ID     string
	Status helpdesk.Status
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("help request %s is already %s", e.ID, e.Status)
}

// StoreError wraps a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStoreUnavailable) true for any StoreError.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsNotFound returns true if err is a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation returns true if err is a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAlreadyResolved returns true if err is an *AlreadyResolvedError.
func IsAlreadyResolved(err error) bool {
	var target *AlreadyResolvedError
	return errors.As(err, &target)
}

// IsStoreUnavailable returns true if err came from a failed store call.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
