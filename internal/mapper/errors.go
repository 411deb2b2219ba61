package mapper

import "errors"

var (
	// ErrInvalidModel indicates the model or record cannot produce a valid point:
	// no columns, no identity, or no time bucket.
	ErrInvalidModel = errors.New("invalid model")

	// ErrEncoding indicates the storage builder or a custom storage type failed to encode a value.
	ErrEncoding = errors.New("storage data encoding failed")

	// ErrInvalidTimeUnit indicates a timestamp was set with a non-positive unit.
	ErrInvalidTimeUnit = errors.New("invalid time unit")
)
