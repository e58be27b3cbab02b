package dbx

import "context"

// Exec executes a statement that is run for side effect (INSERT, UPDATE,
// DELETE, DDL) and returns the total number of rows affected, summed across
// all result segments (a statement may produce several segments under
// multi-statement or batched execution).
//
// Binding follows the same discipline as [Query]: params bind positionally
// and a nil entry binds as SQL NULL. Failures are wrapped as a *[ExecError]
// with the original statement text, the parameter list, and the cause;
// taxonomy errors from nested calls pass through unwrapped.
//
// Example:
//
//	n, err := dbx.Exec(ctx, tx, `update users set active = $1 where id = $2`, false, 42)
func Exec(ctx context.Context, s Session, sql string, params ...any) (int64, error) {
	segs, err := s.Run(ctx, sql, params...)
	if err != nil {
		return 0, wrapExec(ctx, s, sql, params, err)
	}
	var n int64
	for _, seg := range segs {
		n += seg.RowsAffected()
	}
	return n, nil
}

func wrapExec(ctx context.Context, s Session, sql string, params []any, err error) error {
	if isTaxonomy(err) {
		return err
	}
	werr := &ExecError{SQL: sql, Params: params, Err: err}
	if r, ok := s.(errorReporter); ok {
		r.report(ctx, werr)
	}
	return werr
}
