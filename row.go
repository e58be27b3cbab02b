package dbx

import (
	"fmt"
	"reflect"
	"time"
)

// Row is one fully materialized result row: an ordered column list plus the
// decoded value for each column. Rows are immutable values; adapters build
// them with [NewRow] and the accessors never mutate them.
//
// Column lookup is case-sensitive and uses the names exactly as the driver
// reported them. Use [Row.Columns] to see what a query actually returned.
type Row struct {
	cols  []string
	index map[string]int
	vals  []any
}

// NewRow builds a Row from parallel column and value slices. It is intended
// for driver adapters and test fakes. Extra values beyond len(columns) are
// dropped; missing values read as NULL. When a column name repeats, the
// first occurrence wins for lookup.
func NewRow(columns []string, values []any) Row {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return Row{cols: columns, index: idx, vals: values}
}

// Columns returns a copy of the column names in result order.
func (r Row) Columns() []string {
	return append([]string(nil), r.cols...)
}

// Len returns the number of columns in the row.
func (r Row) Len() int { return len(r.cols) }

// Value returns the raw driver value of column and whether the column exists.
// A present-but-NULL column yields (nil, true).
func (r Row) Value(column string) (any, bool) {
	i, ok := r.index[column]
	if !ok {
		return nil, false
	}
	if i >= len(r.vals) {
		return nil, true
	}
	return r.vals[i], true
}

// Get extracts the value of column from r, coerced to T.
//
// It fails with *[ColumnNotFoundError] when the column is absent from the
// row and with *[NullColumnError] when it is present but NULL; both carry
// the full column list for diagnosis. The two cases are distinct on purpose:
// an absent column is almost always a typo, a NULL value means the field is
// nullable and should be read with [GetOpt].
//
// Example:
//
//	id, err := dbx.Get[int64](row, "id")
//	name, err := dbx.Get[string](row, "name")
func Get[T any](r Row, column string) (T, error) {
	var zero T
	v, ok := r.Value(column)
	if !ok {
		return zero, &ColumnNotFoundError{Column: column, Columns: r.Columns()}
	}
	if v == nil {
		return zero, &NullColumnError{Column: column, Columns: r.Columns()}
	}
	return coerce[T](v)
}

// GetOpt extracts the value of column from r, coerced to T, returning nil
// when the column is absent or its value is NULL. Callers that need to tell
// absence apart from NULL should use [Get] and inspect the error kind, or
// check [Row.Columns] directly.
func GetOpt[T any](r Row, column string) (*T, error) {
	v, ok := r.Value(column)
	if !ok || v == nil {
		return nil, nil
	}
	out, err := coerce[T](v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// coerce converts a decoded driver value into T. Exact matches are free;
// beyond that it allows the safe conversions drivers commonly require:
// numeric widenings within a kind class, []byte<->string, and named types
// over those primitives.
func coerce[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	dst := reflect.New(reflect.TypeOf(&zero).Elem()).Elem()
	if err := coerceValue(dst, v); err != nil {
		return zero, err
	}
	return dst.Interface().(T), nil
}

// coerceValue is the reflect form of coerce shared with the struct scanner.
// A nil v zeroes dst (pointer fields become nil). Pointer destinations are
// allocated layer by layer so *string, **int, etc. all work.
func coerceValue(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	for dst.Kind() == reflect.Pointer {
		dst.Set(reflect.New(dst.Type().Elem()))
		dst = dst.Elem()
	}
	dt := dst.Type()
	sv := reflect.ValueOf(v)
	st := sv.Type()
	if st.AssignableTo(dt) {
		dst.Set(sv)
		return nil
	}

	switch dt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch st.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(sv.Int())
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetInt(int64(sv.Uint()))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch st.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if sv.Int() >= 0 {
				dst.SetUint(uint64(sv.Int()))
				return nil
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(sv.Uint())
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch st.Kind() {
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(sv.Float())
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetFloat(float64(sv.Int()))
			return nil
		}
	case reflect.String:
		if b, ok := v.([]byte); ok {
			dst.SetString(string(b))
			return nil
		}
		if st.Kind() == reflect.String {
			dst.SetString(sv.String())
			return nil
		}
	case reflect.Slice:
		if dt.Elem().Kind() == reflect.Uint8 {
			if s, ok := v.(string); ok {
				dst.SetBytes([]byte(s))
				return nil
			}
		}
	case reflect.Bool:
		if st.Kind() == reflect.Bool {
			dst.SetBool(sv.Bool())
			return nil
		}
	case reflect.Struct:
		if dt == reflect.TypeOf(time.Time{}) {
			if t, ok := v.(time.Time); ok {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
	}

	return fmt.Errorf("dbx: cannot convert column value of type %T to %s", v, dt)
}
