package dbx

import (
	"context"
	"fmt"
)

type txState int

const (
	txNotStarted txState = iota
	txActive
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txNotStarted:
		return "not started"
	case txActive:
		return "active"
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("txState(%d)", int(s))
}

// Tx is a transaction handle: it owns exactly one borrowed connection for
// the duration of one unit of work and executes statements against it.
// Handles are created by [DB.WithTx] and terminate in exactly one of
// committed or rolled back; they are never reusable afterwards.
//
// A Tx belongs to a single call chain. Statements issued on it execute in
// issue order on the one underlying connection; it is not safe for
// concurrent use from multiple goroutines.
type Tx struct {
	conn  Conn
	state txState
	hook  ErrorHook
}

func newTx(conn Conn, hook ErrorHook) *Tx {
	return &Tx{conn: conn, state: txNotStarted, hook: hook}
}

// Run executes sql with positional params on the transaction's connection
// and returns the raw result segments. A nil entry in params binds as SQL
// NULL at its position. Most callers want [Query] or [Exec] instead, which
// add row mapping, affected-count summation, and taxonomy wrapping.
//
// Running a statement on a terminated handle fails with a *[TxError]
// carrying [ErrTxDone]; silent success after commit or rollback would hide
// a lifecycle bug.
func (tx *Tx) Run(ctx context.Context, sql string, params ...any) ([]Result, error) {
	if tx.state != txActive {
		err := &TxError{Op: "run", Err: fmt.Errorf("%w (state: %s)", ErrTxDone, tx.state)}
		tx.report(ctx, err)
		return nil, err
	}
	return tx.conn.Execute(ctx, sql, params)
}

func (tx *Tx) begin(ctx context.Context) error {
	if tx.state != txNotStarted {
		return &TxError{Op: "begin", Err: fmt.Errorf("begin on %s transaction", tx.state)}
	}
	if err := tx.conn.Begin(ctx); err != nil {
		return &TxError{Op: "begin", Err: err}
	}
	tx.state = txActive
	return nil
}

func (tx *Tx) commit(ctx context.Context) error {
	if tx.state != txActive {
		return &TxError{Op: "commit", Err: fmt.Errorf("commit on %s transaction", tx.state)}
	}
	if err := tx.conn.Commit(ctx); err != nil {
		return &TxError{Op: "commit", Err: err}
	}
	tx.state = txCommitted
	return nil
}

// rollback transitions the handle to rolled back even when the ROLLBACK
// statement itself fails: the handle must never look reusable.
func (tx *Tx) rollback(ctx context.Context) error {
	if tx.state != txActive {
		return &TxError{Op: "rollback", Err: fmt.Errorf("rollback on %s transaction", tx.state)}
	}
	tx.state = txRolledBack
	if err := tx.conn.Rollback(ctx); err != nil {
		return &TxError{Op: "rollback", Err: err}
	}
	return nil
}

func (tx *Tx) report(ctx context.Context, err error) {
	if tx.hook != nil {
		tx.hook(ctx, err)
	}
}
