package dbx

import "context"

// Query executes sql on s with positional params and maps every returned row
// through mapper, producing the full result slice in order. The result is
// materialized before Query returns; there is no cursor left open.
//
// A nil entry in params binds as SQL NULL at its position. Any failure
// during statement execution or row mapping is wrapped as a *[QueryError]
// carrying the original statement text, the parameter list, and the cause.
// A failure that is already a taxonomy error from a nested call is returned
// as-is.
//
// s is typically a *[Tx] (inside [DB.WithTx]) or a *[DB], whose Run joins
// the ambient transaction when one is open. mapper runs once per row;
// [StructOf] builds one from struct tags, or compose [Get] and [GetOpt]
// by hand:
//
//	type user struct {
//	    ID    int64
//	    Email string
//	}
//
//	users, err := dbx.Query(ctx, db, `select id, email from users where active = $1`,
//	    func(r dbx.Row) (user, error) {
//	        id, err := dbx.Get[int64](r, "id")
//	        if err != nil {
//	            return user{}, err
//	        }
//	        email, err := dbx.Get[string](r, "email")
//	        if err != nil {
//	            return user{}, err
//	        }
//	        return user{ID: id, Email: email}, nil
//	    }, true)
func Query[T any](ctx context.Context, s Session, sql string, mapper func(Row) (T, error), params ...any) ([]T, error) {
	segs, err := s.Run(ctx, sql, params...)
	if err != nil {
		return nil, wrapQuery(ctx, s, sql, params, err)
	}
	var out []T
	for _, seg := range segs {
		for _, row := range seg.Rows() {
			v, mapErr := mapper(row)
			if mapErr != nil {
				return nil, wrapQuery(ctx, s, sql, params, mapErr)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// QueryRow executes sql and maps the first returned row. It returns
// [ErrNoRows] when the query yields no rows; additional rows are ignored,
// so use LIMIT 1 (or an equivalent WHERE clause) when you require
// at-most-one row.
func QueryRow[T any](ctx context.Context, s Session, sql string, mapper func(Row) (T, error), params ...any) (T, error) {
	var zero T
	segs, err := s.Run(ctx, sql, params...)
	if err != nil {
		return zero, wrapQuery(ctx, s, sql, params, err)
	}
	for _, seg := range segs {
		for _, row := range seg.Rows() {
			v, mapErr := mapper(row)
			if mapErr != nil {
				return zero, wrapQuery(ctx, s, sql, params, mapErr)
			}
			return v, nil
		}
	}
	return zero, ErrNoRows
}

func wrapQuery(ctx context.Context, s Session, sql string, params []any, err error) error {
	if isTaxonomy(err) {
		return err
	}
	werr := &QueryError{SQL: sql, Params: params, Err: err}
	if r, ok := s.(errorReporter); ok {
		r.report(ctx, werr)
	}
	return werr
}
