package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers map them to HTTP
// statuses with errors.Is; the text is what clients see.
var (
	ErrValidation         = errors.New("invalid input")
	ErrEmailExists        = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrForbidden          = errors.New("Not authorized to perform this action")

	ErrUserNotFound = errors.New("User not found")
	ErrTripNotFound = errors.New("Trip not found")
	ErrBidNotFound  = errors.New("Bid not found")

	ErrTripNotOpen       = errors.New("Trip is not open for bidding")
	ErrBidNotPending     = errors.New("Bid has already been processed")
	ErrInvalidAction     = errors.New("Invalid action")
	ErrInvalidTransition = errors.New("Trip status change not allowed")
	ErrNotPayable        = errors.New("Bid cannot be paid")
	ErrAlreadyPaid       = errors.New("Bid has already been paid")
	ErrNotPaid           = errors.New("You can only rate paid bookings")
	ErrAlreadyRated      = errors.New("Booking has already been rated")
	ErrInvalidRating     = errors.New("Rating must be between 1 and 5")
	ErrIntentMismatch    = errors.New("Payment intent does not match this booking")
)

// validationError wraps ErrValidation with a client-facing reason.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
