package dbx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRows is returned by [QueryRow] when the query yields no rows.
var ErrNoRows = errors.New("dbx: no rows in result set")

// ErrTxDone is the cause carried by the *TxError returned when a statement
// runs on a transaction handle that has already been committed or rolled
// back. A handle is never reusable after it terminates.
var ErrTxDone = errors.New("dbx: transaction has already been committed or rolled back")

// ErrorHook receives every taxonomy error the moment it is created, before
// it is returned to the caller. Hooks are optional; the usual use is feeding
// an error-reporting sink. The hook must not retain params beyond the call.
type ErrorHook func(ctx context.Context, err error)

// QueryError reports a failure during prepare, bind, or execute of a
// statement issued through [Query] or [QueryRow]. SQL holds the original
// statement text and Params the bound parameters, so the failure can be
// diagnosed without re-running the query.
type QueryError struct {
	SQL    string
	Params []any
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("dbx: query %q params %s: %v", e.SQL, formatParams(e.Params), e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ExecError reports a failure during prepare, bind, or execute of a
// statement issued through [Exec]. It carries the same context as
// [QueryError].
type ExecError struct {
	SQL    string
	Params []any
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("dbx: exec %q params %s: %v", e.SQL, formatParams(e.Params), e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// TxError reports a failure of a transaction boundary: begin, commit, or
// rollback, or a statement attempted on a terminated handle. Op names the
// boundary that failed.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("dbx: transaction %s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// ColumnNotFoundError reports a [Get] on a column that is absent from the
// row. Columns lists every column actually present, which is usually enough
// to spot the typo.
type ColumnNotFoundError struct {
	Column  string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("dbx: column %q not found in result row (have %s)",
		e.Column, strings.Join(e.Columns, ", "))
}

// NullColumnError reports a [Get] on a column that is present but NULL.
// It is deliberately distinct from [ColumnNotFoundError]: a missing column
// is a typo, a NULL value is a legitimately nullable field read with the
// wrong accessor.
type NullColumnError struct {
	Column  string
	Columns []string
}

func (e *NullColumnError) Error() string {
	return fmt.Sprintf("dbx: column %q is null (have %s)",
		e.Column, strings.Join(e.Columns, ", "))
}

// isTaxonomy reports whether err already carries one of the five taxonomy
// kinds. Wrapping sites check it so an error produced by a nested call is
// never wrapped a second time.
func isTaxonomy(err error) bool {
	var (
		qe *QueryError
		ee *ExecError
		te *TxError
		ne *NullColumnError
		ce *ColumnNotFoundError
	)
	return errors.As(err, &qe) || errors.As(err, &ee) || errors.As(err, &te) ||
		errors.As(err, &ne) || errors.As(err, &ce)
}

func formatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p == nil {
			b.WriteString("<null>")
			continue
		}
		fmt.Fprintf(&b, "%v", p)
	}
	b.WriteByte(']')
	return b.String()
}
