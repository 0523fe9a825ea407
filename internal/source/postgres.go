package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads a log that the platform mirrors into a table, one row per
// line. The table needs an ordering column "id" and a text column "line".
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects to databaseURL and reads from table.
func NewPostgres(ctx context.Context, databaseURL, table string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to database: %v", ErrInputUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrInputUnavailable, err)
	}
	return &Postgres{pool: pool, table: table}, nil
}

func (p *Postgres) Ref() string { return "postgres:" + p.table }

func (p *Postgres) Read(ctx context.Context) (string, error) {
	rows, err := p.pool.Query(ctx, selectLinesSQL(p.table))
	if err != nil {
		return "", fmt.Errorf("%w: query %s: %v", ErrInputUnavailable, p.table, err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("%w: scan %s: %v", ErrInputUnavailable, p.table, err)
	}
	return strings.Join(lines, "\n"), nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func selectLinesSQL(table string) string {
	return fmt.Sprintf("SELECT line FROM %s ORDER BY id", pgx.Identifier(strings.Split(table, ".")).Sanitize())
}
