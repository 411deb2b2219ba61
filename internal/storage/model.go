package storage

import "fmt"

// ColumnName pairs the logical name used by the storage builder with the
// name the value is written under
type ColumnName struct {
	Name        string
	StorageName string
}

// Column describes one field of a model
type Column struct {
	ColumnName ColumnName
}

// NewColumn creates a column. An empty storage name falls back to the logical name.
func NewColumn(name, storageName string) Column {
	if storageName == "" {
		storageName = name
	}
	return Column{ColumnName: ColumnName{Name: name, StorageName: storageName}}
}

// TagPromotion copies a field value into a tag when a point is built
type TagPromotion struct {
	Field string
	Tag   string
}

// Model is a named measurement with an ordered set of columns.
// A Model is read-only after NewModel returns and may be shared freely.
type Model struct {
	name       string
	columns    []Column
	promotions []TagPromotion
}

// NewModel builds an immutable model. The column and promotion slices are copied.
func NewModel(name string, columns []Column, promotions ...TagPromotion) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("model %q has no columns", name)
	}

	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.ColumnName.Name == "" || c.ColumnName.StorageName == "" {
			return nil, fmt.Errorf("model %q has a column without a name", name)
		}
		if _, dup := seen[c.ColumnName.StorageName]; dup {
			return nil, fmt.Errorf("model %q declares storage name %q twice", name, c.ColumnName.StorageName)
		}
		seen[c.ColumnName.StorageName] = struct{}{}
	}

	for _, p := range promotions {
		if p.Field == "" || p.Tag == "" {
			return nil, fmt.Errorf("model %q has an incomplete tag promotion", name)
		}
	}

	return &Model{
		name:       name,
		columns:    append([]Column(nil), columns...),
		promotions: append([]TagPromotion(nil), promotions...),
	}, nil
}

// Name returns the measurement name
func (m *Model) Name() string {
	return m.name
}

// Columns returns a copy of the ordered column list
func (m *Model) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// NumColumns returns the column count without copying
func (m *Model) NumColumns() int {
	return len(m.columns)
}

// Column returns the i-th column
func (m *Model) Column(i int) Column {
	return m.columns[i]
}

// Promotions returns a copy of the fields promoted to tags for this model
func (m *Model) Promotions() []TagPromotion {
	return append([]TagPromotion(nil), m.promotions...)
}
