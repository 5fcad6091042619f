package datasource

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identPattern limits measurement columns to the identifiers process
// historians actually export. Anything else is a strategy authoring
// error, rejected before it can reach SQL.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres reads measurements from one wide table: a timestamp column
// plus one double-precision column per process variable.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects and verifies the pool with a ping.
func NewPostgres(ctx context.Context, connString, table string) (*Postgres, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid measurement table name %q", table)
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to measurement database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging measurement database: %w", err)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Latest returns the newest row strictly after since, projected to
// vars. NULL columns are omitted from the sample.
func (p *Postgres) Latest(ctx context.Context, vars []string, since time.Time) (Sample, error) {
	cols := make([]string, 0, len(vars))
	for _, v := range vars {
		if !identPattern.MatchString(v) {
			return Sample{}, fmt.Errorf("invalid measurement column name %q", v)
		}
		cols = append(cols, pgx.Identifier{v}.Sanitize())
	}

	query := fmt.Sprintf(
		`SELECT "timestamp", %s FROM %s WHERE "timestamp" > $1 ORDER BY "timestamp" DESC LIMIT 1`,
		strings.Join(cols, ", "), pgx.Identifier{p.table}.Sanitize())

	var ts time.Time
	dest := make([]any, 0, len(vars)+1)
	dest = append(dest, &ts)
	raw := make([]*float64, len(vars))
	for i := range raw {
		dest = append(dest, &raw[i])
	}

	err := p.pool.QueryRow(ctx, query, since).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sample{}, ErrNoNewData
	}
	if err != nil {
		return Sample{}, fmt.Errorf("querying latest measurement: %w", err)
	}

	sample := Sample{Timestamp: ts, Values: make(map[string]float64, len(vars))}
	for i, v := range vars {
		if raw[i] != nil {
			sample.Values[v] = *raw[i]
		}
	}
	return sample, nil
}
