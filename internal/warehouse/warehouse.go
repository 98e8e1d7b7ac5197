// Package warehouse loads the per-user summary into Postgres using pgx v5.
//
// The load is keyed by run date: existing rows for the date are deleted and
// the new rows are written with COPY, so re-running a day replaces that
// day's rows instead of duplicating them. Delete and COPY run in one
// transaction; a failed COPY rolls back and the previous load for the date
// stays intact.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"searchetl/internal/searches"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds warehouse loader configuration.
type Config struct {
	DSN   string // pgx connection string, resolved from the environment by the caller
	Table string // fully qualified target table, e.g. "public.search_activity"
}

// columns is the COPY column order. It mirrors the summary artifact plus
// the run_date partition column.
var columns = []string{
	"user_id",
	"num_valid_searches",
	"avg_listings",
	"type_of_search",
	"list_of_valid_searches",
	"run_date",
}

// Loader owns a pgx pool bound to one target table.
type Loader struct {
	pool *pgxpool.Pool
	cfg  Config

	// begin starts the load transaction; tests stub it.
	begin func(context.Context) (pgx.Tx, error)
}

// NewLoader constructs a Loader and returns a close function for cleanup.
func NewLoader(ctx context.Context, cfg Config) (*Loader, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("warehouse: DSN is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("warehouse: table is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Loader{pool: pool, cfg: cfg, begin: pool.Begin}, close, nil
}

// CreateTableSQL returns the deterministic bootstrap DDL for the summary
// table. Identifiers are double-quoted; the statement is idempotent.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n"+
			"  \"user_id\" text NOT NULL,\n"+
			"  \"num_valid_searches\" integer NOT NULL,\n"+
			"  \"avg_listings\" double precision NOT NULL,\n"+
			"  \"type_of_search\" text NOT NULL,\n"+
			"  \"list_of_valid_searches\" text NOT NULL,\n"+
			"  \"run_date\" date NOT NULL,\n"+
			"  PRIMARY KEY (\"run_date\", \"user_id\")\n"+
			");",
		quoteFQN(table),
	)
}

// EnsureTable applies the bootstrap DDL.
func (l *Loader) EnsureTable(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, CreateTableSQL(l.cfg.Table)); err != nil {
		return fmt.Errorf("warehouse: ensure table %s: %w", l.cfg.Table, err)
	}
	return nil
}

// Rows converts summaries into COPY rows for the given run date. Users
// without a valid search are skipped, matching the summary artifact.
func Rows(users []searches.UserSummary, runDate time.Time) [][]any {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		if u.NumValidSearches == 0 {
			continue
		}
		rows = append(rows, []any{
			u.UserID,
			int32(u.NumValidSearches),
			u.AvgListings,
			string(u.TypeOfSearch),
			searches.FormatIDList(u.ValidSearchIDs),
			runDate,
		})
	}
	return rows
}

// Load replaces the run date's rows with the given summaries and returns
// the number of rows written. Delete and COPY share one transaction so a
// COPY failure cannot leave the date's rows half gone while the artifacts
// in the lake carry the new data.
func (l *Loader) Load(ctx context.Context, users []searches.UserSummary, runDate time.Time) (int64, error) {
	rows := Rows(users, runDate)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("warehouse: begin: %w", err)
	}
	// Rollback is a no-op once the transaction committed.
	defer func() { _ = tx.Rollback(ctx) }()

	del := fmt.Sprintf("DELETE FROM %s WHERE run_date = $1", quoteFQN(l.cfg.Table))
	if _, err := tx.Exec(ctx, del, runDate); err != nil {
		return 0, fmt.Errorf("warehouse: clear run date: %w", err)
	}

	n, err := tx.CopyFrom(ctx, splitFQN(l.cfg.Table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("warehouse: copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("warehouse: copy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("warehouse: commit: %w", err)
	}
	return n, nil
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// quoteIdent quotes a single identifier segment for Postgres.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// quoteFQN quotes a possibly schema-qualified name like "public.search_activity"
// to `"public"."search_activity"`. Empty segments are ignored.
func quoteFQN(f string) string {
	parts := strings.Split(f, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}
