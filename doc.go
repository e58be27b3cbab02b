/*
Package dbx is a thin lifecycle layer over a pooled SQL driver: scoped
connection borrowing, transactions with guaranteed cleanup on every exit
path, parameterized query/execute helpers, typed row extraction, and
structured error wrapping. You write plain SQL; dbx makes sure connections
and transactions are never leaked and failures carry enough context to
diagnose without re-running anything.

# Overview

The core package is driver-agnostic: it talks to the outside world through
the small [Pool]/[Conn]/[Result] capability set. The postgres subpackage
binds that set to pgxpool; the stdsql subpackage binds it to database/sql,
which covers every stdlib-compatible driver. dbx does not pool connections,
speak a wire protocol, build queries, or run migrations; those belong to
the driver underneath.

# Lifecycle

[DB.WithConn] borrows one connection, runs your function, and releases the
connection exactly once whether the function returns, fails, panics, or the
context is cancelled mid-flight. [DB.WithTx] layers begin/commit/rollback on
top: commit on nil, rollback on error with the original error preserved, and
rollback failures chained rather than swallowed. [Open] runs a probe query
at startup so an unreachable database fails fast.

Nested calls join the enclosing transaction instead of borrowing a second
connection: WithTx threads the handle through the context, and the [Session]
surface on *DB consults it before touching the pool. The ambient handle is
call-chain-scoped: concurrent chains never see each other's transaction.

# Queries

[Query], [QueryRow], and [Exec] are generic helpers over any [Session].
Parameters bind positionally; a nil entry binds as SQL NULL. Results are
fully materialized. Row values come back through [Get] and [GetOpt], which
tell "column missing" (a typo) apart from "value NULL" (a nullable field),
or through [StructOf], which maps rows into structs by `db` tags with a
cached scan plan. [Rebind], [NamedQuery], and [NamedExec] add :named
parameter binding with IN-list expansion.

# Errors

Every failure surfaces as one of five kinds: [QueryError] and [ExecError]
(statement text, parameters, cause), [TxError] (which boundary failed),
[ColumnNotFoundError] and [NullColumnError] (requested column plus the
columns actually present). Kinds are never double-wrapped; inspect them with
errors.As. An optional [ErrorHook] observes each error as it is created,
for feeding an error-reporting sink.

# Usage notes

Create one [DB] per process and share it; each call chain borrows its own
connection. Keep transactions short; the connection is held for the whole
unit of work. Statements on one transaction execute in issue order; across
transactions, ordering is whatever the database's isolation level gives you.
Never retain a [Conn] or [Tx] beyond the function it was handed to.
*/
package dbx
