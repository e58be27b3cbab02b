package stdsql

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/go-mizu/dbx"
)

// newTestDB opens a file-backed SQLite database and wraps it in a dbx.DB,
// probe included.
func newTestDB(t *testing.T) *dbx.DB {
	t.Helper()
	sdb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := dbx.Open(context.Background(), NewPool(sdb, 0),
		dbx.WithProbe("select sqlite_version()"))
	if err != nil {
		t.Fatalf("dbx.Open: %v", err)
	}
	t.Cleanup(db.Close)

	_, err = dbx.Exec(context.Background(), db,
		`create table users (id integer primary key, email text not null, bio text)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func countUsers(t *testing.T, db *dbx.DB) int64 {
	t.Helper()
	n, err := dbx.QueryRow(context.Background(), db, `select count(*) as n from users`,
		dbx.Scan[int64])
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCommitPersistsRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(ctx context.Context, tx *dbx.Tx) error {
		_, err := dbx.Exec(ctx, tx, `insert into users (email) values (?)`, "a@example.com")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got := countUsers(t, db); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestRollbackDiscardsRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(ctx context.Context, tx *dbx.Tx) error {
		if _, err := dbx.Exec(ctx, tx, `insert into users (email) values (?)`, "a@example.com"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if got := countUsers(t, db); got != 0 {
		t.Fatalf("count = %d, want 0 after rollback", got)
	}
}

func TestNestedCallSeesUncommittedRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(ctx context.Context, tx *dbx.Tx) error {
		if _, err := dbx.Exec(ctx, tx, `insert into users (email) values (?)`, "a@example.com"); err != nil {
			return err
		}
		// Uses the *DB surface: must join the open transaction, or a second
		// connection would not see the uncommitted row.
		n, err := dbx.QueryRow(ctx, db, `select count(*) as n from users`, dbx.Scan[int64])
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("nested count = %d, want 1 (must run on the transaction's connection)", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}

func TestExecReportsAffectedRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"a@x", "b@x", "c@x"} {
		if _, err := dbx.Exec(ctx, db, `insert into users (email) values (?)`, email); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	n, err := dbx.Exec(ctx, db, `delete from users where email like ?`, "%@x")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 3 {
		t.Fatalf("affected = %d, want 3", n)
	}
}

func TestNullParameterRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := dbx.Exec(ctx, db, `insert into users (email, bio) values (?, ?)`, "a@x", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	bio, err := dbx.QueryRow(ctx, db, `select bio from users where email = ?`,
		func(r dbx.Row) (*string, error) { return dbx.GetOpt[string](r, "bio") },
		"a@x")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if bio != nil {
		t.Fatalf("bio = %v, want nil for NULL", *bio)
	}
}

func TestStructMappingOverRealRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	type user struct {
		ID    int64   `db:"id"`
		Email string  `db:"email"`
		Bio   *string `db:"bio"`
	}

	_, err := dbx.Exec(ctx, db, `insert into users (email, bio) values (?, ?), (?, ?)`,
		"a@x", "first", "b@x", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	users, err := dbx.Query(ctx, db, `select id, email, bio from users order by id`,
		dbx.StructOf[user]())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Email != "a@x" || users[0].Bio == nil || *users[0].Bio != "first" {
		t.Fatalf("users[0] = %+v", users[0])
	}
	if users[1].Bio != nil {
		t.Fatalf("users[1].Bio = %v, want nil", *users[1].Bio)
	}
}

func TestQueryErrorCarriesStatement(t *testing.T) {
	db := newTestDB(t)

	_, err := dbx.Query(context.Background(), db, `select nope from missing_table`,
		dbx.Scan[int64])
	var qe *dbx.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *dbx.QueryError, got %T: %v", err, err)
	}
	if qe.SQL != `select nope from missing_table` {
		t.Fatalf("SQL = %q", qe.SQL)
	}
}

func TestReturnsRows(t *testing.T) {
	cases := []struct {
		sql  string
		want bool
	}{
		{"select 1", true},
		{"SELECT 1", true},
		{"  with x as (select 1) select * from x", true},
		{"insert into t values (1)", false},
		{"insert into t values (1) returning id", true},
		{"-- lead comment\nselect 1", true},
		{"/* c */ delete from t", false},
		{"pragma user_version", true},
		{"update t set a=1", false},
	}
	for _, c := range cases {
		if got := returnsRows(c.sql); got != c.want {
			t.Errorf("returnsRows(%q) = %v, want %v", c.sql, got, c.want)
		}
	}
}
