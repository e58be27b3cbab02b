package dbx

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"
	"time"
)

// StructOf returns a mapper for [Query] and [QueryRow] that fills a T from
// each row by matching columns to struct fields.
//
//   - Fields bind by `db:"name"` first; otherwise case-insensitive
//     field ←→ column name.
//   - Nested structs can be flattened with `db:",inline"`.
//   - `db:"-"` skips a field.
//   - Extra columns are ignored; missing columns yield zero values.
//   - A NULL value zeroes the field; use a pointer field to keep NULLs
//     distinguishable.
//
// On first use of a (T, column-set) pair the scanner builds a plan (column →
// field index path) and caches it in a concurrency-safe map, so repeated
// scans avoid re-walking the struct.
//
// Example:
//
//	type user struct {
//	    ID    int64   `db:"id"`
//	    Email string  `db:"email"`
//	    Bio   *string `db:"bio"` // nullable
//	}
//
//	users, err := dbx.Query(ctx, db, `select id, email, bio from users`, dbx.StructOf[user]())
func StructOf[T any]() func(Row) (T, error) {
	return Scan[T]
}

// Scan maps a single [Row] into a T using the same rules as [StructOf].
// A non-struct T requires the row to have exactly one column, which is
// coerced directly.
func Scan[T any](r Row) (T, error) {
	var zero T
	rt := reflect.TypeOf(&zero).Elem()

	if derefType(rt).Kind() != reflect.Struct || rt == timeType {
		if r.Len() != 1 {
			return zero, fmt.Errorf("dbx: cannot scan %d columns into %s; use a struct", r.Len(), rt)
		}
		v, _ := r.Value(r.cols[0])
		return coerce[T](v)
	}

	pl := planFor(rt, r.cols)
	rv := reflect.New(rt).Elem()
	for i, fpath := range pl.steps {
		if fpath == nil || i >= len(r.vals) {
			continue
		}
		fv := fieldByPathAlloc(rv, fpath)
		if err := coerceValue(fv, r.vals[i]); err != nil {
			return zero, fmt.Errorf("dbx: column %q: %w", r.cols[i], err)
		}
	}
	return rv.Interface().(T), nil
}

var timeType = reflect.TypeOf(time.Time{})

// ---------------- Planning & caches ----------------

type planKey struct {
	rt    reflect.Type
	hash  uint64 // FNV-1a of normalized columns
	ncols int
}

type scanPlan struct {
	// steps holds, per column, the field index path to fill, or nil to drop
	// the column.
	steps [][]int
}

var (
	planCache        sync.Map // planKey -> *scanPlan
	structIndexCache sync.Map // reflect.Type -> map[string][]int
)

func planFor(rt reflect.Type, cols []string) *scanPlan {
	h := fnv.New64a()
	for _, c := range cols {
		_, _ = h.Write([]byte(toLowerAscii(c)))
		_, _ = h.Write([]byte{0})
	}
	key := planKey{rt: rt, hash: h.Sum64(), ncols: len(cols)}
	if v, ok := planCache.Load(key); ok {
		return v.(*scanPlan)
	}

	idx := structIndex(rt)
	pl := &scanPlan{steps: make([][]int, len(cols))}
	for i, c := range cols {
		if fp, ok := idx[toLowerAscii(c)]; ok {
			pl.steps[i] = fp
		}
	}
	planCache.Store(key, pl)
	return pl
}

func structIndex(rt reflect.Type) map[string][]int {
	if v, ok := structIndexCache.Load(rt); ok {
		return v.(map[string][]int)
	}
	idx := buildStructIndex(rt)
	structIndexCache.Store(rt, idx)
	return idx
}

// ---------------- Struct indexing & tags ----------------

func buildStructIndex(rt reflect.Type) map[string][]int {
	idx := make(map[string][]int)

	var walk func(t reflect.Type, base []int, forceInline bool)
	walk = func(t reflect.Type, base []int, forceInline bool) {
		t = derefType(t)
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous { // unexported, non-anonymous
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			ft := sf.Type
			path := append(append([]int(nil), base...), i)

			if inline || (sf.Anonymous && (forceInline || tag == "")) {
				if derefType(ft).Kind() == reflect.Struct && derefType(ft) != timeType {
					walk(ft, path, inline)
					continue
				}
			}
			if name == "" {
				name = sf.Name
			}
			lc := toLowerAscii(name)
			if _, ok := idx[lc]; !ok {
				idx[lc] = path
			}
		}
	}
	walk(rt, nil, false)
	return idx
}

// parseTag supports: "-", "col", ",inline", "col,inline", "inline,col".
func parseTag(tag string) (name string, inline bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return "", false, false
	}
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			part := tag[start:i]
			if part == "inline" {
				inline = true
			} else if part != "" && name == "" {
				name = part
			}
			start = i + 1
		}
	}
	return name, inline, false
}

// ---------------- Reflect helpers ----------------

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// fieldByPathAlloc walks a field index path, allocating intermediate nil
// pointers as it goes.
func fieldByPathAlloc(root reflect.Value, fpath []int) reflect.Value {
	v := root
	for _, i := range fpath {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

func toLowerAscii(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
