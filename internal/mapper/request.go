// Package mapper converts column-oriented storage records into points for a
// tag-based time-series backend.
//
// A point carries the model's columns as fields (keyed by storage name), the
// record identity under the "id" field and the record's time bucket under the
// "_time_bucket" tag. Further fields can be promoted to tags and an explicit
// timestamp can be attached before the point is read.
package mapper

import (
	"fmt"
	"time"

	"github.com/basekick-labs/pointmap/internal/contract"
	"github.com/basekick-labs/pointmap/internal/storage"
	"github.com/basekick-labs/pointmap/pkg/models"
)

// InsertRequest accumulates one point.
//
// Fields are fixed once NewInsertRequest returns; tags and the timestamp may
// still be added. Point returns a snapshot, so read it only after all
// augmentations have been applied.
type InsertRequest struct {
	measurement string
	fields      map[string]interface{}
	tags        map[string]string
	time        int64
	unit        time.Duration
	err         error
}

// NewInsertRequest maps data onto model using builder to obtain the value map.
func NewInsertRequest(model *storage.Model, data storage.StorageData, builder storage.StorageBuilder) (*InsertRequest, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	if model.NumColumns() == 0 {
		return nil, fmt.Errorf("%w: model %q has no columns", ErrInvalidModel, model.Name())
	}
	if data == nil {
		return nil, fmt.Errorf("%w: nil storage data for model %q", ErrInvalidModel, model.Name())
	}
	id := data.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: storage data for model %q has no id", ErrInvalidModel, model.Name())
	}

	objectMap, err := builder.Data2Map(data)
	if err != nil {
		return nil, fmt.Errorf("%w: model %q id %q: %w", ErrEncoding, model.Name(), id, err)
	}

	// +1 for the identity field
	fields := make(map[string]interface{}, model.NumColumns()+1)
	for i := 0; i < model.NumColumns(); i++ {
		col := model.Column(i).ColumnName
		value := objectMap[col.Name]

		if sdt, ok := value.(storage.StorageDataType); ok {
			encoded, err := sdt.ToStorageData()
			if err != nil {
				return nil, fmt.Errorf("%w: column %q of model %q: %w", ErrEncoding, col.Name, model.Name(), err)
			}
			value = encoded
		}
		fields[col.StorageName] = value
	}

	// The identity field wins over a column that happens to share its key
	fields[contract.ID] = id

	timeBucket := fields[contract.TimeBucket]
	if timeBucket == nil {
		return nil, fmt.Errorf("%w: model %q id %q has no %s value", ErrInvalidModel, model.Name(), id, contract.TimeBucket)
	}

	return &InsertRequest{
		measurement: model.Name(),
		fields:      fields,
		tags: map[string]string{
			contract.TagTimeBucket: stringify(timeBucket),
		},
	}, nil
}

// Time sets the explicit timestamp of the point, replacing any earlier one.
// unit is the duration of one tick of t, e.g. time.Millisecond. A timestamp
// that overflows int64 nanoseconds fails Point with models.ErrTimeOutOfRange.
func (r *InsertRequest) Time(t int64, unit time.Duration) *InsertRequest {
	if unit <= 0 {
		r.err = fmt.Errorf("%w: %v", ErrInvalidTimeUnit, unit)
		return r
	}
	if err := models.CheckTime(t, unit); err != nil {
		r.err = fmt.Errorf("%w: %d x %v", err, t, unit)
		return r
	}
	r.time = t
	r.unit = unit
	r.err = nil
	return r
}

// AddFieldAsTag indexes the value of field under tag. Fields that are absent
// or carry no value are skipped. The field itself stays in the field set.
func (r *InsertRequest) AddFieldAsTag(field, tag string) *InsertRequest {
	if value, ok := r.fields[field]; ok && value != nil {
		r.tags[tag] = stringify(value)
	}
	return r
}

// Field returns the value stored under field and whether the field exists
func (r *InsertRequest) Field(field string) (interface{}, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Point returns the point built so far. Each call returns fresh maps, so
// callers may modify the result without affecting the request.
func (r *InsertRequest) Point() (models.Point, error) {
	if r.err != nil {
		return models.Point{}, r.err
	}

	fields := make(map[string]interface{}, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	tags := make(map[string]string, len(r.tags))
	for k, v := range r.tags {
		tags[k] = v
	}

	return models.Point{
		Measurement: r.measurement,
		Fields:      fields,
		Tags:        tags,
		Time:        r.time,
		TimeUnit:    r.unit,
	}, nil
}
