// Package stdsql binds the dbx capability set to database/sql, which makes
// any stdlib-compatible driver usable underneath dbx (SQLite, MySQL, SQL
// Server, ...). Pooling stays with *sql.DB; each Acquire pins one
// *sql.Conn, so transaction statements issued through the wrapper are
// guaranteed to run on a single session.
package stdsql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-mizu/dbx"
)

// NewPool adapts db as a [dbx.Pool]. The caller keeps ownership of db's
// pool settings (SetMaxOpenConns and friends); acquireTimeout bounds each
// Acquire on top of the caller's context, zero means no extra bound.
// Closing the returned pool closes db.
func NewPool(db *sql.DB, acquireTimeout time.Duration) dbx.Pool {
	return &pool{db: db, acquireTimeout: acquireTimeout}
}

type pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

func (p *pool) Acquire(ctx context.Context) (dbx.Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

func (p *pool) Close() { _ = p.db.Close() }

// conn wraps one pinned *sql.Conn. BEGIN/COMMIT/ROLLBACK go through
// ExecContext as literal statements; database/sql keeps them on this one
// connection because *sql.Conn never swaps sessions.
type conn struct {
	c *sql.Conn
}

func (c *conn) Begin(ctx context.Context) error {
	_, err := c.c.ExecContext(ctx, "BEGIN")
	return err
}

func (c *conn) Commit(ctx context.Context) error {
	_, err := c.c.ExecContext(ctx, "COMMIT")
	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	_, err := c.c.ExecContext(ctx, "ROLLBACK")
	return err
}

func (c *conn) Execute(ctx context.Context, sqlText string, params []any) ([]dbx.Result, error) {
	if returnsRows(sqlText) {
		return c.executeQuery(ctx, sqlText, params)
	}
	res, err := c.c.ExecContext(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	// Not every driver can report affected rows; treat that as zero rather
	// than failing a statement that already succeeded.
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return []dbx.Result{segment{affected: affected}}, nil
}

func (c *conn) executeQuery(ctx context.Context, sqlText string, params []any) ([]dbx.Result, error) {
	rows, err := c.c.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []dbx.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, dbx.NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return []dbx.Result{segment{affected: int64(len(out)), rows: out}}, nil
}

func (c *conn) Release() error {
	return c.c.Close()
}

// returnsRows decides Query vs Exec by the statement's leading keyword,
// since database/sql exposes affected counts and row sets through different
// calls. RETURNING clauses force the query path.
func returnsRows(sqlText string) bool {
	s := strings.TrimSpace(sqlText)
	for strings.HasPrefix(s, "--") || strings.HasPrefix(s, "/*") {
		if strings.HasPrefix(s, "--") {
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return false
			}
			s = strings.TrimSpace(s[nl+1:])
			continue
		}
		end := strings.Index(s, "*/")
		if end < 0 {
			return false
		}
		s = strings.TrimSpace(s[end+2:])
	}
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '(' {
		i++
	}
	switch strings.ToUpper(s[:i]) {
	case "SELECT", "WITH", "VALUES", "SHOW", "PRAGMA", "EXPLAIN", "DESCRIBE", "TABLE":
		return true
	}
	up := strings.ToUpper(s)
	return strings.Contains(up, "RETURNING")
}

type segment struct {
	affected int64
	rows     []dbx.Row
}

func (s segment) RowsAffected() int64 { return s.affected }
func (s segment) Rows() []dbx.Row     { return s.rows }
