package orders

import (
	"context"
	"errors"
)

// Validation errors: rejected before any mutation.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAlreadyExists   = errors.New("already exists")
)

// Business rule errors: recoverable, no partial state change.
var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrAlreadyProcessed    = errors.New("order already processed")
	ErrNotExpired          = errors.New("reservation has not expired")
	ErrBonusExceedsBalance = errors.New("bonus exceeds balance")
	ErrCodeNotFound        = errors.New("code not found")
	ErrCodeExpired         = errors.New("code expired")
	ErrCodeExhausted       = errors.New("code exhausted")
	ErrAlreadyUsed         = errors.New("code already used")
)

// ErrInvariantViolation marks a bookkeeping bug. Never corrected silently.
var ErrInvariantViolation = errors.New("invariant violation")

type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindBusiness
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	case KindInvariant:
		return "invariant"
	default:
		return "infrastructure"
	}
}

var validationErrs = []error{ErrNotFound, ErrInvalidQuantity, ErrInvalidInput, ErrAlreadyExists}

var businessErrs = []error{
	ErrInsufficientStock, ErrInvalidTransition, ErrAlreadyProcessed, ErrNotExpired,
	ErrBonusExceedsBalance, ErrCodeNotFound, ErrCodeExpired, ErrCodeExhausted, ErrAlreadyUsed,
}

// Classify maps an error to its kind. Unknown errors are infrastructure.
func Classify(err error) Kind {
	if errors.Is(err, ErrInvariantViolation) {
		return KindInvariant
	}
	for _, e := range businessErrs {
		if errors.Is(err, e) {
			return KindBusiness
		}
	}
	for _, e := range validationErrs {
		if errors.Is(err, e) {
			return KindValidation
		}
	}
	return KindInfrastructure
}

// Transient reports whether err may succeed on retry.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return Classify(err) == KindInfrastructure
}

// Outcome is the (success, reason) pair handed to the UI layer.
func Outcome(err error) (bool, string) {
	if err == nil {
		return true, ""
	}
	if Classify(err) == KindInfrastructure {
		return false, "temporary failure, try again"
	}
	return false, err.Error()
}

// Reason is the caller-facing text for err, empty on success.
func Reason(err error) string {
	_, r := Outcome(err)
	return r
}
