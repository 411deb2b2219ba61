// Package ingest serializes points into the payload formats accepted by
// time-series write endpoints.
// This file implements an InfluxDB Line Protocol encoder.
//
// Line Protocol Format:
//
//	measurement[,tag_key=tag_value...] field_key=field_value[,field_key=field_value...] [timestamp]
//
// Examples:
//
//	service_metric,_time_bucket=20240101120000 entity_id="svcA",id="svc-1",time_bucket=20240101120000i,value=42i
//	cpu,host=server01 usage=90.5 1609459200000000000
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/basekick-labs/pointmap/pkg/models"
)

// ErrNoFields is returned for points that have no encodable field
var ErrNoFields = errors.New("point has no encodable fields")

// Newlines terminate a line, so they are escaped wherever they can appear
var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `, "\n", `\n`, "\r", `\r`)
	keyEscaper         = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `, "\n", `\n`, "\r", `\r`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
)

// LineProtocolEncoder writes points as InfluxDB Line Protocol.
// Tags and fields are written in sorted key order so output is deterministic.
type LineProtocolEncoder struct{}

// NewLineProtocolEncoder creates a new Line Protocol encoder
func NewLineProtocolEncoder() *LineProtocolEncoder {
	return &LineProtocolEncoder{}
}

// EncodePoint encodes a single point without a trailing newline.
// Nil fields and non-finite floats are skipped.
func (e *LineProtocolEncoder) EncodePoint(p models.Point) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.appendPoint(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeBatch encodes points one per line
func (e *LineProtocolEncoder) EncodeBatch(points []models.Point) ([]byte, error) {
	var buf bytes.Buffer
	for i := range points {
		if err := e.appendPoint(&buf, points[i]); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (e *LineProtocolEncoder) appendPoint(buf *bytes.Buffer, p models.Point) error {
	if p.Measurement == "" {
		return fmt.Errorf("point has no measurement")
	}
	if err := p.CheckTime(); err != nil {
		return fmt.Errorf("measurement %q: %w", p.Measurement, err)
	}

	var line bytes.Buffer
	line.WriteString(measurementEscaper.Replace(strings.ToValidUTF8(p.Measurement, "�")))

	for _, key := range sortedKeys(p.Tags) {
		value := p.Tags[key]
		// Empty tag values are not representable
		if key == "" || value == "" {
			continue
		}
		line.WriteByte(',')
		line.WriteString(escapeKey(key))
		line.WriteByte('=')
		line.WriteString(escapeKey(value))
	}

	written := 0
	for _, key := range sortedKeys(p.Fields) {
		encoded, ok := formatFieldValue(p.Fields[key])
		if !ok {
			continue
		}
		if written == 0 {
			line.WriteByte(' ')
		} else {
			line.WriteByte(',')
		}
		line.WriteString(escapeKey(key))
		line.WriteByte('=')
		line.WriteString(encoded)
		written++
	}
	if written == 0 {
		return fmt.Errorf("%w: measurement %q", ErrNoFields, p.Measurement)
	}

	if p.HasTime() {
		line.WriteByte(' ')
		line.WriteString(strconv.FormatInt(p.UnixNano(), 10))
	}

	buf.Write(line.Bytes())
	return nil
}

// formatFieldValue renders a field value with its Line Protocol type indicator.
// Type indicators:
//   - Integer: ends with 'i' (e.g., 123i)
//   - Unsigned integer: ends with 'u' (e.g., 123u)
//   - Float: numeric without suffix (e.g., 123.45)
//   - String: wrapped in quotes (e.g., "hello")
//   - Boolean: true, false
func formatFieldValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return quote(val), true
	case []byte:
		return quote(string(val)), true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.FormatInt(int64(val), 10) + "i", true
	case int8:
		return strconv.FormatInt(int64(val), 10) + "i", true
	case int16:
		return strconv.FormatInt(int64(val), 10) + "i", true
	case int32:
		return strconv.FormatInt(int64(val), 10) + "i", true
	case int64:
		return strconv.FormatInt(val, 10) + "i", true
	case uint:
		return strconv.FormatUint(uint64(val), 10) + "u", true
	case uint8:
		return strconv.FormatUint(uint64(val), 10) + "u", true
	case uint16:
		return strconv.FormatUint(uint64(val), 10) + "u", true
	case uint32:
		return strconv.FormatUint(uint64(val), 10) + "u", true
	case uint64:
		return strconv.FormatUint(val, 10) + "u", true
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case fmt.Stringer:
		return quote(val.String()), true
	default:
		return quote(fmt.Sprint(val)), true
	}
}

func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func quote(s string) string {
	return `"` + stringEscaper.Replace(strings.ToValidUTF8(s, "�")) + `"`
}

func escapeKey(s string) string {
	return keyEscaper.Replace(strings.ToValidUTF8(s, "�"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
