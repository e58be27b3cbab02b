package dbx

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Placeholder selects the positional parameter style for a target database.
//
// Common choices:
//   - PlaceholderQuestion → "?"          (MySQL, SQLite, DuckDB)
//   - PlaceholderDollar   → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP      → "@p1, @p2…"  (SQL Server)
//   - PlaceholderColonNum → ":1, :2, …"  (Oracle)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

// ErrNilParams is returned when named binding is requested with a nil
// pointer or nil params value.
var ErrNilParams = errors.New("dbx: named bind: nil params")

// ErrUnsupportedArg is returned when the single named-binding argument is
// not a struct or map[string]any.
var ErrUnsupportedArg = errors.New("dbx: named bind: params must be struct or map[string]any")

// ErrMissingParam is returned when the query names a parameter the supplied
// struct or map does not provide.
var ErrMissingParam = errors.New("dbx: named bind: missing parameter")

// Rebind resolves :named parameters (if applicable) and rewrites
// placeholders to the requested positional style.
//
//   - Named style (exactly one struct or map[string]any):
//     sql, args, err := dbx.Rebind(
//     `SELECT * FROM users WHERE status=:status AND id IN (:ids)`,
//     dbx.PlaceholderDollar,
//     map[string]any{"status": "active", "ids": []int{1, 2, 3}},
//     )
//     // sql  => SELECT * FROM users WHERE status=$1 AND id IN ($2,$3,$4)
//     // args => ["active", 1, 2, 3]
//
//     Slices and arrays expand; []byte stays scalar; an empty slice becomes
//     NULL (so `IN (NULL)` matches no rows on most engines).
//
//   - Positional passthrough (any other params shape): the args are already
//     positional and only placeholder rewriting is applied.
//
// The scanner skips quoted strings, line and block comments, PostgreSQL
// $tag$…$tag$ blocks, and `::` casts, so names inside literals are left
// alone.
func Rebind(query string, ph Placeholder, params ...any) (string, []any, error) {
	if len(params) == 1 && looksBindable(params[0]) {
		qPos, args, err := bindNamedParams(query, params[0])
		if err != nil {
			return "", nil, err
		}
		return rewritePlaceholders(qPos, ph), args, nil
	}
	return rewritePlaceholders(query, ph), params, nil
}

// NamedExec is [Exec] with named or positional arguments. It calls [Rebind],
// then executes on s. The wrapped error context carries the rewritten
// statement, since that is what the driver actually saw.
func NamedExec(ctx context.Context, s Session, ph Placeholder, query string, params ...any) (int64, error) {
	bound, args, err := Rebind(query, ph, params...)
	if err != nil {
		return 0, err
	}
	return Exec(ctx, s, bound, args...)
}

// NamedQuery is [Query] with named or positional arguments.
//
// Example:
//
//	rows, err := dbx.NamedQuery(ctx, db, dbx.PlaceholderDollar,
//	    `SELECT id, email FROM users WHERE status=:s`,
//	    dbx.StructOf[user](),
//	    map[string]any{"s": "active"},
//	)
func NamedQuery[T any](ctx context.Context, s Session, ph Placeholder, query string, mapper func(Row) (T, error), params ...any) ([]T, error) {
	bound, args, err := Rebind(query, ph, params...)
	if err != nil {
		return nil, err
	}
	return Query(ctx, s, bound, mapper, args...)
}

// looksBindable reports whether v is the single struct or map that selects
// named binding.
func looksBindable(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(map[string]any); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true // named binding requested with nil pointer; bind reports ErrNilParams
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct && rv.Type() != timeType
}

// bindNamedParams rewrites :name references to `?` and collects the bound
// values in reference order. Repeated names bind the value again at each
// position.
func bindNamedParams(query string, params any) (string, []any, error) {
	lookup, err := namedLookup(params)
	if err != nil {
		return "", nil, err
	}

	var (
		out  strings.Builder
		args []any
	)
	out.Grow(len(query) + 8)

	i := 0
	for i < len(query) {
		c := query[i]

		if skipped := skipQuoted(query, i); skipped > i {
			out.WriteString(query[i:skipped])
			i = skipped
			continue
		}

		if c == ':' {
			// `::` is a Postgres cast, not a parameter.
			if i+1 < len(query) && query[i+1] == ':' {
				out.WriteString("::")
				i += 2
				continue
			}
			start := i + 1
			j := start
			for j < len(query) && isNameChar(query[j]) {
				j++
			}
			if j == start {
				out.WriteByte(c)
				i++
				continue
			}
			name := query[start:j]
			v, ok := lookup(name)
			if !ok {
				return "", nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
			}
			expandValue(&out, &args, v)
			i = j
			continue
		}

		out.WriteByte(c)
		i++
	}
	return out.String(), args, nil
}

// expandValue writes the placeholder(s) for one bound value. Slices and
// arrays (except []byte) expand element-wise; empty ones become NULL.
func expandValue(out *strings.Builder, args *[]any, v any) {
	rv := reflect.ValueOf(v)
	if v != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type() != reflect.TypeOf([]byte(nil)) {
		n := rv.Len()
		if n == 0 {
			out.WriteString("NULL")
			return
		}
		for k := 0; k < n; k++ {
			if k > 0 {
				out.WriteByte(',')
			}
			out.WriteByte('?')
			*args = append(*args, rv.Index(k).Interface())
		}
		return
	}
	out.WriteByte('?')
	*args = append(*args, v)
}

// namedLookup builds a case-insensitive name → value function over a
// map[string]any or a struct (using the same `db` tag rules as [StructOf]).
func namedLookup(params any) (func(string) (any, bool), error) {
	if m, ok := params.(map[string]any); ok {
		lowered := make(map[string]any, len(m))
		for k, v := range m {
			lowered[toLowerAscii(k)] = v
		}
		return func(name string) (any, bool) {
			v, ok := lowered[toLowerAscii(name)]
			return v, ok
		}, nil
	}

	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, ErrNilParams
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, ErrUnsupportedArg
	}
	idx := structIndex(rv.Type())
	return func(name string) (any, bool) {
		fp, ok := idx[toLowerAscii(name)]
		if !ok {
			return nil, false
		}
		fv := rv
		for _, i := range fp {
			for fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					return nil, true // nil pointer field binds as NULL
				}
				fv = fv.Elem()
			}
			fv = fv.Field(i)
		}
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			return nil, true
		}
		return fv.Interface(), true
	}, nil
}

// rewritePlaceholders converts `?` placeholders to the requested style,
// skipping literals and comments.
func rewritePlaceholders(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	var out strings.Builder
	out.Grow(len(query) + 8)
	n := 0
	i := 0
	for i < len(query) {
		if skipped := skipQuoted(query, i); skipped > i {
			out.WriteString(query[i:skipped])
			i = skipped
			continue
		}
		if query[i] == '?' {
			n++
			switch ph {
			case PlaceholderDollar:
				out.WriteByte('$')
			case PlaceholderAtP:
				out.WriteString("@p")
			case PlaceholderColonNum:
				out.WriteByte(':')
			}
			out.WriteString(strconv.Itoa(n))
			i++
			continue
		}
		out.WriteByte(query[i])
		i++
	}
	return out.String()
}

// skipQuoted returns the index just past a literal or comment starting at i,
// or i when position i does not open one. Handled: '…' (with doubled ''),
// "…", line comments --, block comments /* */, and $tag$…$tag$ blocks.
func skipQuoted(q string, i int) int {
	switch q[i] {
	case '\'', '"':
		quote := q[i]
		j := i + 1
		for j < len(q) {
			if q[j] == quote {
				if quote == '\'' && j+1 < len(q) && q[j+1] == '\'' {
					j += 2
					continue
				}
				return j + 1
			}
			j++
		}
		return len(q)
	case '-':
		if i+1 < len(q) && q[i+1] == '-' {
			j := i + 2
			for j < len(q) && q[j] != '\n' {
				j++
			}
			return j
		}
	case '/':
		if i+1 < len(q) && q[i+1] == '*' {
			j := i + 2
			for j+1 < len(q) {
				if q[j] == '*' && q[j+1] == '/' {
					return j + 2
				}
				j++
			}
			return len(q)
		}
	case '$':
		// $tag$ … $tag$ dollar quoting; also bare $$ … $$.
		j := i + 1
		for j < len(q) && isNameChar(q[j]) {
			j++
		}
		if j < len(q) && q[j] == '$' {
			tag := q[i : j+1]
			end := strings.Index(q[j+1:], tag)
			if end < 0 {
				return len(q)
			}
			return j + 1 + end + len(tag)
		}
	}
	return i
}

func isNameChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
