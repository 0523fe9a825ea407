//go:build integration

package source

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestIntegration_PostgresRead(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	table := "chatlog_test_" + uuid.New().String()[:8]

	pg, err := NewPostgres(ctx, dbURL, table)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		pg.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
		pg.Close()
	})

	if _, err := pg.pool.Exec(ctx, "CREATE TABLE "+table+" (id serial PRIMARY KEY, line text NOT NULL)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, line := range []string{
		"Jan 5 13:42 [user: bob] Unitex input: hi",
		"Jan 5 13:42 [user: bob] ChatScript output: hello",
	} {
		if _, err := pg.pool.Exec(ctx, "INSERT INTO "+table+" (line) VALUES ($1)", line); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	text, err := pg.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := "Jan 5 13:42 [user: bob] Unitex input: hi\nJan 5 13:42 [user: bob] ChatScript output: hello"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}
