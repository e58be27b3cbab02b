// Package postgres binds the dbx capability set to PostgreSQL via
// jackc/pgx's pgxpool. The pool owns connection lifetime and health;
// this package only adapts borrow/release, transaction boundaries, and
// statement execution to the shapes dbx expects.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-mizu/dbx"
)

// NewPool builds a pgx connection pool from cfg and returns it as a
// [dbx.Pool]. It dials nothing eagerly beyond what pgxpool itself does;
// run the connectivity probe through [dbx.Open].
//
//	pool, err := postgres.NewPool(ctx, dbx.Config{
//	    Conn: dbx.ConnConfig{Host: "localhost", Port: 5432, Database: "app", User: "app", Password: secret},
//	    Pool: dbx.PoolConfig{MaxConns: 10, AcquireTimeout: 5 * time.Second},
//	})
//	if err != nil {
//	    return err
//	}
//	db, err := dbx.Open(ctx, pool)
func NewPool(ctx context.Context, cfg dbx.Config) (dbx.Pool, error) {
	pc, err := pgxpool.ParseConfig(buildDSN(cfg.Conn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.Pool.MaxConns > 0 {
		pc.MaxConns = cfg.Pool.MaxConns
	}
	if cfg.Pool.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.Pool.MaxConnIdleTime
	}
	p, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	return &pool{p: p, acquireTimeout: cfg.Pool.AcquireTimeout}, nil
}

// WrapPool adapts an existing *pgxpool.Pool. acquireTimeout bounds each
// Acquire; zero means no bound beyond the caller's context.
func WrapPool(p *pgxpool.Pool, acquireTimeout time.Duration) dbx.Pool {
	return &pool{p: p, acquireTimeout: acquireTimeout}
}

// buildDSN renders the key=value connection string pgx parses. Values with
// spaces or quotes are single-quoted per libpq rules. Driver params sort by
// key so the output is deterministic.
func buildDSN(c dbx.ConnConfig) string {
	var parts []string
	add := func(k, v string) {
		if v == "" {
			return
		}
		if strings.ContainsAny(v, " '\\") {
			v = "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
		}
		parts = append(parts, k+"="+v)
	}
	add("host", c.Host)
	if c.Port != 0 {
		add("port", fmt.Sprintf("%d", c.Port))
	}
	add("dbname", c.Database)
	add("user", c.User)
	add("password", c.Password)

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, c.Params[k])
	}
	return strings.Join(parts, " ")
}

type pool struct {
	p              *pgxpool.Pool
	acquireTimeout time.Duration
}

func (p *pool) Acquire(ctx context.Context) (dbx.Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	c, err := p.p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

func (p *pool) Close() { p.p.Close() }

// conn adapts one borrowed *pgxpool.Conn. The pool pins it to this wrapper
// until Release, so BEGIN/COMMIT/ROLLBACK issued here stay on one session.
type conn struct {
	c *pgxpool.Conn
}

func (c *conn) Begin(ctx context.Context) error {
	_, err := c.c.Exec(ctx, "begin")
	return err
}

func (c *conn) Commit(ctx context.Context) error {
	_, err := c.c.Exec(ctx, "commit")
	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	_, err := c.c.Exec(ctx, "rollback")
	return err
}

func (c *conn) Execute(ctx context.Context, sql string, params []any) ([]dbx.Result, error) {
	rows, err := c.c.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []dbx.Row
	for rows.Next() {
		vals, valErr := rows.Values()
		if valErr != nil {
			return nil, valErr
		}
		out = append(out, dbx.NewRow(cols, vals))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return []dbx.Result{segment{affected: rows.CommandTag().RowsAffected(), rows: out}}, nil
}

func (c *conn) Release() error {
	c.c.Release()
	return nil
}

// segment is the single result segment a pgx Query produces. The extended
// protocol runs one statement per Execute, so there is never more than one.
type segment struct {
	affected int64
	rows     []dbx.Row
}

func (s segment) RowsAffected() int64 { return s.affected }
func (s segment) Rows() []dbx.Row     { return s.rows }
