package dbx

import "context"

// The ambient transaction rides on context.Context, so it is scoped to one
// call chain by construction: two concurrent chains each carry their own
// context and can never observe each other's transaction. [DB.WithTx] pushes
// the handle on entry and the derived context dies with the unit of work.

type txCtxKey struct{}

func withTxContext(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFromContext returns the transaction handle the current call chain is
// running inside, if any. [DB.Run], [DB.Exec], and [DB.WithTx] consult it
// implicitly; it is exported for callers composing their own helpers over
// the [Session] surface.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(*Tx)
	return tx, ok
}
