package dbx

import (
	"context"
	"sync"
)

// handler answers fake statement executions, one call per Execute.
type handler func(sql string, params []any) ([]Result, error)

type stmt struct {
	sql    string
	params []any
}

// fakePool hands out recording connections. Error fields are copied onto
// every connection it mints, so tests can force failures at any boundary.
type fakePool struct {
	mu         sync.Mutex
	handle     handler
	conns      []*fakeConn
	acquireErr error
	closed     int

	beginErr    error
	commitErr   error
	rollbackErr error
	releaseErr  error
	execErr     error
}

func newFakePool(h handler) *fakePool { return &fakePool{handle: h} }

func (p *fakePool) Acquire(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	c := &fakeConn{
		id:          len(p.conns) + 1,
		handle:      p.handle,
		beginErr:    p.beginErr,
		commitErr:   p.commitErr,
		rollbackErr: p.rollbackErr,
		releaseErr:  p.releaseErr,
		execErr:     p.execErr,
	}
	p.conns = append(p.conns, c)
	return c, nil
}

func (p *fakePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

// acquired returns how many connections have been borrowed so far.
func (p *fakePool) acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *fakePool) conn(i int) *fakeConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[i]
}

type fakeConn struct {
	id         int
	handle     handler
	released   int
	begun      int
	committed  int
	rolledBack int
	stmts      []stmt

	beginErr    error
	commitErr   error
	rollbackErr error
	releaseErr  error
	execErr     error
}

func (c *fakeConn) Begin(context.Context) error {
	c.begun++
	return c.beginErr
}

func (c *fakeConn) Commit(context.Context) error {
	if c.commitErr != nil {
		return c.commitErr
	}
	c.committed++
	return nil
}

func (c *fakeConn) Rollback(context.Context) error {
	if c.rollbackErr != nil {
		return c.rollbackErr
	}
	c.rolledBack++
	return nil
}

func (c *fakeConn) Execute(_ context.Context, sql string, params []any) ([]Result, error) {
	c.stmts = append(c.stmts, stmt{sql: sql, params: params})
	if c.execErr != nil {
		return nil, c.execErr
	}
	if c.handle != nil {
		return c.handle(sql, params)
	}
	return []Result{seg{}}, nil
}

func (c *fakeConn) Release() error {
	c.released++
	return c.releaseErr
}

// seg is a canned result segment.
type seg struct {
	affected int64
	rows     []Row
}

func (s seg) RowsAffected() int64 { return s.affected }
func (s seg) Rows() []Row         { return s.rows }
