package storage

import "errors"

var (
	// ErrModelNotFound indicates no model is registered under the requested name.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelExists indicates a model with the same name is already registered.
	ErrModelExists = errors.New("model already registered")
)

// StorageData is a record produced by the analysis engine
type StorageData interface {
	// ID returns the stable identity of the record
	ID() string
}

// StorageBuilder converts storage data into a generic map keyed by logical column name
type StorageBuilder interface {
	// Data2Map encodes the record. Implementations must not mutate data.
	Data2Map(data StorageData) (map[string]interface{}, error)
}

// StorageDataType is implemented by values that need a custom encoding
// before they can be written as a field value
type StorageDataType interface {
	ToStorageData() (interface{}, error)
}
