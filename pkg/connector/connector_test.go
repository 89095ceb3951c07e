package connector

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/config"
)

func openMemory(t *testing.T) *SQLiteConnector {
	t.Helper()
	conn, err := NewSQLiteConnector(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteConnector: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSQLiteConnectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)

	if err := conn.Validate(ctx); err != nil {
		t.Fatal(err)
	}
	if conn.Dialect() != DialectSQLite || conn.Dialect().String() != "sqlite" {
		t.Errorf("dialect = %v", conn.Dialect())
	}

	defs := []string{"id TEXT NOT NULL", "amount TEXT"}
	for i := 0; i < 2; i++ {
		if err := conn.CreateTableIfNotExists(ctx, "items", defs, "id"); err != nil {
			t.Fatalf("create attempt %d: %v", i, err)
		}
	}

	var rows [][]interface{}
	for i := 0; i < 5; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("id-%d", i), fmt.Sprintf("%d.00", i)})
	}
	n, err := conn.BatchInsert(ctx, "items", []string{"id", "amount"}, rows, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("inserted %d rows, want 5", n)
	}

	var seen []string
	err = conn.BatchQuery(ctx, "SELECT id, amount FROM items ORDER BY id", 2, func(r *sqlx.Rows) error {
		var id, amount string
		if err := r.Scan(&id, &amount); err != nil {
			return err
		}
		seen = append(seen, id)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(seen, ",") != "id-0,id-1,id-2,id-3,id-4" {
		t.Errorf("paged ids = %v", seen)
	}
}

func TestBatchInsertRejectsRaggedRows(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	if err := conn.CreateTableIfNotExists(ctx, "t", []string{"a TEXT", "b TEXT"}, ""); err != nil {
		t.Fatal(err)
	}

	_, err := conn.BatchInsert(ctx, "t", []string{"a", "b"}, [][]interface{}{{"x", "y"}, {"z"}}, 10)
	if err == nil {
		t.Fatal("expected error for short row")
	}

	// the whole insert rolls back
	var count int
	if err := conn.DB().GetContext(ctx, &count, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d after failed insert, want 0", count)
	}
}

func TestBatchInsertEmpty(t *testing.T) {
	conn := openMemory(t)
	n, err := conn.BatchInsert(context.Background(), "missing", []string{"a"}, nil, 10)
	if err != nil || n != 0 {
		t.Errorf("BatchInsert(nil) = %d, %v", n, err)
	}
}

func TestFactoryNoConnectorForFiles(t *testing.T) {
	cfg := &config.Config{
		Source: config.SourceConfig{Kind: config.SourceCSV, Path: "in.csv"},
		Sink:   config.SinkConfig{Kind: config.SinkNone},
	}
	f := NewConnectorFactory(cfg, zap.NewNop())

	src, err := f.CreateSourceConnector(context.Background())
	if err != nil || src != nil {
		t.Errorf("source = %v, %v; want nil, nil", src, err)
	}
	sink, err := f.CreateSinkConnector(context.Background())
	if err != nil || sink != nil {
		t.Errorf("sink = %v, %v; want nil, nil", sink, err)
	}
}

func TestFactorySQLite(t *testing.T) {
	cfg := &config.Config{
		Source: config.SourceConfig{Kind: config.SourceSQLite, Path: ":memory:", Table: "raw"},
		Sink:   config.SinkConfig{Kind: config.SinkSQLite, Path: ":memory:", Table: "clean"},
	}
	f := NewConnectorFactory(cfg, zap.NewNop())

	src, err := f.CreateSourceConnector(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Dialect() != DialectSQLite || src.Schema() != "" {
		t.Errorf("unexpected source connector: %v %q", src.Dialect(), src.Schema())
	}
}

func TestReplaceRows(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	if err := conn.CreateTableIfNotExists(ctx, "t", []string{"a TEXT"}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.DB().ExecContext(ctx, `CREATE TRIGGER reject_bad BEFORE INSERT ON t
		WHEN NEW.a = 'bad' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatal(err)
	}

	contents := func(t *testing.T) string {
		t.Helper()
		var got []string
		if err := conn.DB().SelectContext(ctx, &got, "SELECT a FROM t ORDER BY a"); err != nil {
			t.Fatal(err)
		}
		return strings.Join(got, ",")
	}

	tests := []struct {
		name    string
		rows    [][]interface{}
		wantErr bool
		want    string
	}{
		{"initial", [][]interface{}{{"x"}, {"y"}}, false, "x,y"},
		{"replace", [][]interface{}{{"z"}}, false, "z"},
		{"failed batch keeps previous rows", [][]interface{}{{"w"}, {"bad"}}, true, "z"},
		{"ragged row keeps previous rows", [][]interface{}{{"w", "extra"}}, true, "z"},
		{"empty clears", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.ReplaceRows(ctx, "t", []string{"a"}, tt.rows, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReplaceRows error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := contents(t); got != tt.want {
				t.Errorf("contents = %q, want %q", got, tt.want)
			}
		})
	}
}
