package bundle

import "errors"

var (
	// ErrSourceRequired is returned when processing is requested without a
	// deck source reference.
	ErrSourceRequired = errors.New("deck source reference required")
)
