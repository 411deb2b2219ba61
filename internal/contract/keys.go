// Package contract holds the reserved keys shared between the record mapper
// and the time-series client. The values must stay bit-exact: points written
// with other keys are invisible to readers that filter on them.
package contract

const (
	// ID is the field key carrying the storage data identity.
	ID = "id"

	// TimeBucket is the metric key holding the time bucket of a record.
	TimeBucket = "time_bucket"

	// TagTimeBucket is the tag key the time bucket is indexed under.
	TagTimeBucket = "_time_bucket"
)
