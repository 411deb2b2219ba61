package models

import (
	"errors"
	"math"
	"time"
)

// ErrTimeOutOfRange is returned for timestamps that do not fit in int64 nanoseconds
var ErrTimeOutOfRange = errors.New("timestamp out of nanosecond range")

// Point is a single write unit for a tag-based time-series backend.
// Fields include the reserved identity field; Tags include the reserved
// time bucket tag plus any fields promoted to tags.
type Point struct {
	Measurement string                 `json:"measurement"`
	Fields      map[string]interface{} `json:"fields"`
	Tags        map[string]string      `json:"tags"`
	Time        int64                  `json:"time,omitempty"`      // Expressed in TimeUnit
	TimeUnit    time.Duration          `json:"time_unit,omitempty"` // 0 means no explicit timestamp
}

// HasTime reports whether the point carries an explicit timestamp
func (p Point) HasTime() bool {
	return p.TimeUnit > 0
}

// CheckTime reports ErrTimeOutOfRange when t ticks of unit overflow int64 nanoseconds
func CheckTime(t int64, unit time.Duration) error {
	if unit <= 0 {
		return nil
	}
	if t > math.MaxInt64/int64(unit) || t < math.MinInt64/int64(unit) {
		return ErrTimeOutOfRange
	}
	return nil
}

// CheckTime validates the explicit timestamp, if any
func (p Point) CheckTime() error {
	if !p.HasTime() {
		return nil
	}
	return CheckTime(p.Time, p.TimeUnit)
}

// UnixNano returns the explicit timestamp in nanoseconds, or 0 when unset.
// Callers check CheckTime first; out of range values wrap.
func (p Point) UnixNano() int64 {
	if !p.HasTime() {
		return 0
	}
	return p.Time * int64(p.TimeUnit)
}

// UnixMicro returns the explicit timestamp in microseconds, or 0 when unset
func (p Point) UnixMicro() int64 {
	if !p.HasTime() {
		return 0
	}
	if p.TimeUnit >= time.Microsecond {
		return p.Time * int64(p.TimeUnit/time.Microsecond)
	}
	return p.UnixNano() / int64(time.Microsecond)
}

// MsgPackPayload is the MessagePack row format accepted by Arc's ingest endpoint
type MsgPackPayload struct {
	M      string                 `msgpack:"m"`              // measurement
	T      *int64                 `msgpack:"t,omitempty"`    // timestamp in microseconds, nil when unset
	Fields map[string]interface{} `msgpack:"fields"`         // fields
	Tags   map[string]string      `msgpack:"tags,omitempty"` // tags
}

// MsgPackBatch wraps several rows into one payload
type MsgPackBatch struct {
	Batch []MsgPackPayload `msgpack:"batch"`
}
