package dbx

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestWithTx_NestedJoinsEnclosingTransaction(t *testing.T) {
	p := newFakePool(nil)
	db := New(p)

	err := db.WithTx(context.Background(), func(ctx context.Context, outer *Tx) error {
		return db.WithTx(ctx, func(ctx context.Context, inner *Tx) error {
			if inner != outer {
				t.Fatal("nested WithTx did not join the enclosing transaction")
			}
			_, err := inner.Run(ctx, "select 1")
			return err
		})
	})
	if err != nil {
		t.Fatalf("WithTx error: %v", err)
	}
	if got := p.acquired(); got != 1 {
		t.Fatalf("acquired %d connections, want 1", got)
	}
	c := p.conn(0)
	if c.begun != 1 || c.committed != 1 {
		t.Fatalf("begun=%d committed=%d, want 1/1 (outermost owns the boundary)", c.begun, c.committed)
	}
}

func TestDBRun_InsideTransactionUsesSameConnection(t *testing.T) {
	p := newFakePool(nil)
	db := New(p)

	err := db.WithTx(context.Background(), func(ctx context.Context, tx *Tx) error {
		// Repository-style call that only sees the ctx, not the handle.
		_, err := db.Run(ctx, "select * from accounts")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx error: %v", err)
	}
	if got := p.acquired(); got != 1 {
		t.Fatalf("acquired %d connections, want 1 (nested call must reuse the transaction's)", got)
	}
	if got := len(p.conn(0).stmts); got != 1 {
		t.Fatalf("transaction connection saw %d statements, want 1", got)
	}
}

func TestDBRun_OutsideTransactionBorrowsAndReleases(t *testing.T) {
	p := newFakePool(nil)
	db := New(p)

	if _, err := db.Run(context.Background(), "select 1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	c := p.conn(0)
	if c.begun != 0 {
		t.Fatalf("connection-scoped Run must not begin a transaction (begun=%d)", c.begun)
	}
	if c.released != 1 {
		t.Fatalf("released %d times, want 1", c.released)
	}
}

func TestTxFromContext_EmptyContext(t *testing.T) {
	if _, ok := TxFromContext(context.Background()); ok {
		t.Fatal("TxFromContext reported a transaction on a bare context")
	}
}

func TestAmbientTransactionsAreChainLocal(t *testing.T) {
	p := newFakePool(nil)
	db := New(p)

	const chains = 8
	var (
		mu   sync.Mutex
		seen = make(map[*Tx]int)
	)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < chains; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := db.WithTx(context.Background(), func(ctx context.Context, tx *Tx) error {
				ambient, ok := TxFromContext(ctx)
				if !ok || ambient != tx {
					return errors.New("chain observed a foreign or missing ambient transaction")
				}
				mu.Lock()
				seen[tx]++
				mu.Unlock()
				_, err := tx.Run(ctx, "select 1")
				return err
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(seen) != chains {
		t.Fatalf("expected %d distinct transactions, got %d", chains, len(seen))
	}
	if got := p.acquired(); got != chains {
		t.Fatalf("acquired %d connections, want %d", got, chains)
	}
}
