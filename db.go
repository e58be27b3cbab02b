package dbx

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// defaultProbe is the lightweight startup query run by [Open]. Override it
// with [WithProbe] for engines that spell their version query differently.
const defaultProbe = "select version()"

// DB is the database handle: it owns one [Pool] for its process lifetime and
// is the root of the connection/transaction lifecycle. It holds no per-call
// state, so a single *DB is safe for concurrent use by any number of
// goroutines; each call chain borrows its own connection.
//
// DB is a concrete struct on purpose. Callers that want a richer surface
// embed or wrap it, and repository helpers stay generic by accepting the
// [Session] capability instead of *DB itself.
type DB struct {
	pool  Pool
	log   zerolog.Logger
	hook  ErrorHook
	probe string
}

// Option configures a DB at construction time.
type Option func(*DB)

// WithLogger sets the logger used for secondary failures (connection release,
// rollback during cleanup) that must not override the primary result. The
// default logger discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(db *DB) { db.log = log }
}

// WithErrorHook installs an error sink. The hook observes every taxonomy
// error created by this handle and its transactions; it runs synchronously
// on the failing call chain, so it should be fast.
func WithErrorHook(hook ErrorHook) Option {
	return func(db *DB) { db.hook = hook }
}

// WithProbe replaces the startup probe statement run by [Open].
func WithProbe(sql string) Option {
	return func(db *DB) { db.probe = sql }
}

// New wraps an already-built pool without touching the database. Prefer
// [Open], which additionally verifies connectivity.
func New(pool Pool, opts ...Option) *DB {
	db := &DB{pool: pool, log: zerolog.Nop(), probe: defaultProbe}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open wraps pool in a DB and runs one probe query through [DB.WithTx] so an
// unreachable database fails fast at startup instead of on the first real
// request. On probe failure the pool is returned to the caller untouched
// (not closed); the caller built it and still owns it.
func Open(ctx context.Context, pool Pool, opts ...Option) (*DB, error) {
	db := New(pool, opts...)
	err := db.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		_, err := tx.Run(ctx, db.probe)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the pool. The DB must not be used afterwards.
func (db *DB) Close() {
	db.pool.Close()
}

// WithConn acquires one connection from the pool, invokes fn with it, and
// returns the connection exactly once no matter how fn exits: normal return,
// error, panic, or cancellation of ctx while fn is suspended. fn must not
// call Release itself and must not retain the connection.
//
// fn's error is propagated unchanged. A release failure is logged and
// reported but never overrides fn's result.
func (db *DB) WithConn(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := conn.Release(); rerr != nil {
			db.log.Warn().Err(rerr).Msg("connection release failed")
			db.report(ctx, rerr)
		}
	}()
	return fn(ctx, conn)
}

// WithTx runs fn inside a transaction. When the calling chain is already
// inside one (see [TxFromContext]), fn joins it directly: no second
// connection is borrowed and commit/rollback stay with the outermost call.
// Otherwise WithTx borrows a connection via [DB.WithConn], begins a
// transaction, and hands fn a handle plus a context carrying it for nested
// calls.
//
// If fn returns nil the transaction is committed; a commit failure is
// surfaced as a *[TxError] and the transaction is rolled back. If fn returns
// an error the transaction is rolled back and fn's error is returned
// unchanged, unless the rollback itself also fails, in which case both are
// chained via [errors.Join] so neither is lost. Cleanup runs even when ctx
// has been cancelled or fn panics.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	return db.WithConn(ctx, func(ctx context.Context, conn Conn) error {
		tx := newTx(conn, db.hook)
		if err := tx.begin(ctx); err != nil {
			db.report(ctx, err)
			return err
		}
		defer func() {
			// Unwinding from a panic (or runtime.Goexit): the connection is
			// about to re-enter the pool and must not carry an open
			// transaction with it.
			if tx.state == txActive {
				if rbErr := tx.rollback(context.WithoutCancel(ctx)); rbErr != nil {
					db.log.Error().Err(rbErr).Msg("rollback during unwind failed")
				}
			}
		}()

		if err := fn(withTxContext(ctx, tx), tx); err != nil {
			if rbErr := tx.rollback(context.WithoutCancel(ctx)); rbErr != nil {
				db.report(ctx, rbErr)
				return errors.Join(err, rbErr)
			}
			return err
		}
		if err := tx.commit(ctx); err != nil {
			db.report(ctx, err)
			if rbErr := tx.rollback(context.WithoutCancel(ctx)); rbErr != nil {
				db.report(ctx, rbErr)
				return errors.Join(err, rbErr)
			}
			return err
		}
		return nil
	})
}

// Run implements [Session]. Inside a transaction (ambient, via ctx) the
// statement executes on the enclosing transaction's connection; otherwise it
// runs as a short-lived, non-transactional operation on a freshly borrowed
// connection that is released before Run returns. Result segments are fully
// materialized, so they stay valid after the connection goes back.
func (db *DB) Run(ctx context.Context, sql string, params ...any) ([]Result, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Run(ctx, sql, params...)
	}
	var segs []Result
	err := db.WithConn(ctx, func(ctx context.Context, conn Conn) error {
		var execErr error
		segs, execErr = conn.Execute(ctx, sql, params)
		return execErr
	})
	return segs, err
}

func (db *DB) report(ctx context.Context, err error) {
	if db.hook != nil {
		db.hook(ctx, err)
	}
}

// Transact runs fn inside a transaction and returns its result. It is the
// value-returning form of [DB.WithTx] with the same join, commit, rollback,
// and cleanup behavior.
//
// Example:
//
//	n, err := dbx.Transact(ctx, db, func(ctx context.Context, tx *dbx.Tx) (int64, error) {
//	    return dbx.Exec(ctx, tx, `delete from sessions where expires_at < now()`)
//	})
func Transact[T any](ctx context.Context, db *DB, fn func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var out T
	err := db.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		var fnErr error
		out, fnErr = fn(ctx, tx)
		return fnErr
	})
	return out, err
}
