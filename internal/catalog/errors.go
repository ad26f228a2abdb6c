package catalog

import "errors"

var (
	errRatingOutOfRange = errors.New("catalog: rating out of range")
	errNegativeDuration = errors.New("catalog: negative duration")
	errEmptyName        = errors.New("catalog: name must not be empty")
	errMembershipMismatch = errors.New("catalog: reorder set does not match current membership")
)
