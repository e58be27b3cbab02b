package dbx

import "context"

// Pool is the borrowing side of an external connection pool. Implementations
// live in the driver subpackages (postgres, stdsql); the core never pools
// connections itself.
//
// Acquire blocks until a connection is available, the pool's acquisition
// timeout elapses, or ctx is done. Close releases the pool and every idle
// connection; it is called once at shutdown via [DB.Close].
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Conn is a single borrowed connection. It is exclusively owned by one call
// chain from Acquire until Release; no two call chains may use the same Conn
// concurrently, and a Conn must never be used after Release.
//
// Begin, Commit, and Rollback drive the transaction on this connection.
// Execute runs one statement with positional parameters bound in order
// (a nil entry binds as SQL NULL, never as an omitted parameter) and returns
// the statement's result segments. A single statement may produce several
// segments under multi-statement or batched execution.
type Conn interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Execute(ctx context.Context, sql string, params []any) ([]Result, error)
	Release() error
}

// Result is one result segment: a row set plus the count of rows the segment
// affected. Rows are fully materialized; there is no cursor to exhaust.
type Result interface {
	RowsAffected() int64
	Rows() []Row
}

// Session is the statement-execution capability shared by *DB and *Tx.
// Repository-style helpers should accept a Session rather than a concrete
// type so the same code runs inside and outside a transaction; the generic
// helpers [Query], [QueryRow], [Exec], [NamedQuery], and [NamedExec] all
// operate on it.
//
// Run executes sql with positional params and returns the raw result
// segments. Driver errors are returned as-is; the helpers above wrap them
// into the error taxonomy.
type Session interface {
	Run(ctx context.Context, sql string, params ...any) ([]Result, error)
}

// errorReporter is implemented by *DB and *Tx when an error sink is
// configured. The generic helpers deliver each newly wrapped taxonomy error
// through it; Sessions from outside the package simply have no sink.
type errorReporter interface {
	report(ctx context.Context, err error)
}
