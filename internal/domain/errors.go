package domain

import "errors"

var (
	// ErrNotFound is returned when no catalog entry matches the id.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrFeedUnavailable is returned when the feed file is missing or unreadable.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrFeedMalformed is returned when the feed document cannot be parsed.
	ErrFeedMalformed = errors.New("feed malformed")

	// ErrFeedEntryNotFound is returned when the feed lacks the requested offer.
	ErrFeedEntryNotFound = errors.New("feed entry not found")

	// ErrPersistence is returned when the catalog could not be written to disk.
	ErrPersistence = errors.New("catalog persistence failed")

	// ErrNotFeedSourced is returned for feed operations on manual entries.
	ErrNotFeedSourced = errors.New("entry has no feed origin")

	// ErrInvalidInput is returned for rejected caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrListNotFound is returned when no product list matches the id.
	ErrListNotFound = errors.New("product list not found")
)
