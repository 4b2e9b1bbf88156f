package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrAuthentication     = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")

	// Returned by store adapters only; the service translates them.
	ErrStoreConflict    = errors.New("store: unique constraint violated")
	ErrStoreUnavailable = errors.New("store: unavailable")
)

// ConflictError reports which unique field collided with an existing user.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return "user already exists"
	}
	return e.Field + " is already taken"
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StoreConflictError is the adapter-side twin of ConflictError. Field may be
// empty when the backend does not say which constraint fired.
type StoreConflictError struct {
	Field string
}

func (e *StoreConflictError) Error() string {
	if e.Field == "" {
		return ErrStoreConflict.Error()
	}
	return fmt.Sprintf("%s on %s", ErrStoreConflict, e.Field)
}

func (e *StoreConflictError) Is(target error) bool {
	return target == ErrStoreConflict
}

func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func NewConflict(field string) error {
	return &ConflictError{Field: field}
}

func NewStoreConflict(field string) error {
	return &StoreConflictError{Field: field}
}

func WrapUnavailable(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, context, err)
}

func WrapStoreUnavailable(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, context, err)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

// ConflictField returns the colliding field of a ConflictError or
// StoreConflictError anywhere in err's chain.
func ConflictField(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	var se *StoreConflictError
	if errors.As(err, &se) {
		return se.Field, true
	}
	return "", false
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

func IsTokenInvalid(err error) bool {
	return errors.Is(err, ErrTokenInvalid)
}

func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsStoreConflict(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
