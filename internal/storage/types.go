package storage

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	dataTableKeyValueSep = ","
	dataTableEntrySep    = "|"
)

// DataTable is an ordered key to int64 table, stored as "k1,v1|k2,v2".
// The zero value is an empty table ready to use.
type DataTable struct {
	keys   []string
	values map[string]int64
}

// ParseDataTable decodes the storage form produced by ToStorageData
func ParseDataTable(s string) (*DataTable, error) {
	t := &DataTable{}
	if s == "" {
		return t, nil
	}
	for _, entry := range strings.Split(s, dataTableEntrySep) {
		idx := strings.LastIndex(entry, dataTableKeyValueSep)
		if idx <= 0 {
			return nil, fmt.Errorf("malformed data table entry %q", entry)
		}
		v, err := strconv.ParseInt(entry[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed data table value in %q: %w", entry, err)
		}
		t.Put(entry[:idx], v)
	}
	return t, nil
}

// Put sets the value for key, keeping the position of existing keys
func (t *DataTable) Put(key string, value int64) {
	if t.values == nil {
		t.values = make(map[string]int64)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value for key
func (t *DataTable) Get(key string) (int64, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (t *DataTable) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of entries
func (t *DataTable) Len() int {
	return len(t.keys)
}

// ToStorageData encodes the table. Keys containing a separator cannot be
// decoded again and are rejected.
func (t *DataTable) ToStorageData() (interface{}, error) {
	var sb strings.Builder
	for i, k := range t.keys {
		if strings.Contains(k, dataTableEntrySep) || strings.Contains(k, dataTableKeyValueSep) {
			return nil, fmt.Errorf("data table key %q contains a reserved separator", k)
		}
		if i > 0 {
			sb.WriteString(dataTableEntrySep)
		}
		sb.WriteString(k)
		sb.WriteString(dataTableKeyValueSep)
		sb.WriteString(strconv.FormatInt(t.values[k], 10))
	}
	return sb.String(), nil
}

// MapData is storage data whose encoded form is already a value map.
// Used for records that arrive pre-flattened, e.g. decoded from JSON.
type MapData struct {
	Identity string
	Values   map[string]interface{}
}

// ID implements StorageData
func (d *MapData) ID() string {
	return d.Identity
}

// MapBuilder is the StorageBuilder for MapData
type MapBuilder struct{}

// Data2Map returns a shallow copy of the record values
func (MapBuilder) Data2Map(data StorageData) (map[string]interface{}, error) {
	md, ok := data.(*MapData)
	if !ok {
		return nil, fmt.Errorf("map builder cannot encode %T", data)
	}
	out := make(map[string]interface{}, len(md.Values))
	for k, v := range md.Values {
		out[k] = v
	}
	return out, nil
}
