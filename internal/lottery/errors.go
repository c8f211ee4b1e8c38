package lottery

import (
	"errors"
	"time"
)

// Lottery errors.
var (
	// ErrAlreadyPlayedToday is returned when the identity played within the rate-limit window.
	ErrAlreadyPlayedToday = errors.New("already played in the last 24 hours")

	// ErrInvalidConfiguration is returned for equal or non-positive winner positions.
	ErrInvalidConfiguration = errors.New("invalid winner position configuration")

	// ErrIdentityUnresolved marks an identity whose IP could not be resolved.
	// It is never fatal: the play proceeds with UnknownIP.
	ErrIdentityUnresolved = errors.New("identity could not be fully resolved")

	// ErrInvalidPhone is returned when a phone number is not 10-15 digits.
	ErrInvalidPhone = errors.New("phone must contain 10 to 15 digits")

	// ErrInvalidName is returned when the player name is empty.
	ErrInvalidName = errors.New("name is required")

	// ErrInvalidCard is returned when the flipped card is out of range.
	ErrInvalidCard = errors.New("card must be between 0 and 2")
)

// PlayedRecentlyError rejects a play inside the rate-limit window.
// It matches ErrAlreadyPlayedToday with errors.Is.
type PlayedRecentlyError struct {
	RetryAfter time.Duration
}

func (e *PlayedRecentlyError) Error() string {
	return ErrAlreadyPlayedToday.Error()
}

func (e *PlayedRecentlyError) Unwrap() error {
	return ErrAlreadyPlayedToday
}
