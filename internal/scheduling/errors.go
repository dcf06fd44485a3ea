package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrOutsideWindow     = errors.New("requested time is outside the doctor's availability")
	ErrSlotUnavailable   = errors.New("requested time overlaps an existing booking")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("caller is not allowed to perform this action")
	ErrWindowInUse       = errors.New("availability window has active consultations")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// Validation reasons. Each satisfies errors.Is(err, ErrValidation).
var (
	ErrMissingField = fmt.Errorf("%w: missing field", ErrValidation)
	ErrInvalidRange = fmt.Errorf("%w: start must be before end", ErrValidation)
	ErrInvalidInput = fmt.Errorf("%w: malformed input", ErrValidation)
)

// Not found reasons. Each satisfies errors.Is(err, ErrNotFound).
var (
	ErrDoctorNotFound       = fmt.Errorf("doctor %w", ErrNotFound)
	ErrPatientNotFound      = fmt.Errorf("patient %w", ErrNotFound)
	ErrWindowNotFound       = fmt.Errorf("availability window %w", ErrNotFound)
	ErrConsultationNotFound = fmt.Errorf("consultation %w", ErrNotFound)
)

// ErrWindowBusy is returned when another booking on the same window holds the
// booking lock. It is transient; callers may retry.
var ErrWindowBusy = fmt.Errorf("%w: window is being booked, retry shortly", ErrStoreUnavailable)

var domainErrors = []error{
	ErrValidation,
	ErrNotFound,
	ErrOutsideWindow,
	ErrSlotUnavailable,
	ErrInvalidTransition,
	ErrUnauthorized,
	ErrWindowInUse,
	ErrStoreUnavailable,
}

// storeErr wraps an unexpected collaborator failure so it is reported as
// ErrStoreUnavailable. Domain errors pass through with added context.
func storeErr(op string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrMissingField, name)
}
