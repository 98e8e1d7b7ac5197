package warehouse

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"searchetl/internal/searches"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TestQuoteIdent verifies Postgres identifier quoting and escaping for
// single identifier segments.
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "user_id", want: `"user_id"`},
		{name: "with space", in: "user id", want: `"user id"`},
		{name: "with double quote", in: `weird"name`, want: `"weird""name"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := quoteIdent(tt.in)
			if got != tt.want {
				t.Fatalf("quoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestQuoteFQN verifies quoting and splitting of schema-qualified names.
func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple table", in: "search_activity", want: `"search_activity"`},
		{name: "schema and table", in: "public.search_activity", want: `"public"."search_activity"`},
		{name: "with empty segments", in: ".public..search_activity.", want: `"public"."search_activity"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := quoteFQN(tt.in)
			if got != tt.want {
				t.Fatalf("quoteFQN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestSplitFQN verifies the pgx identifier split used by CopyFrom.
func TestSplitFQN(t *testing.T) {
	t.Parallel()

	got := splitFQN("public.search_activity")
	if len(got) != 2 || got[0] != "public" || got[1] != "search_activity" {
		t.Fatalf("splitFQN(public.search_activity) = %v", got)
	}

	got = splitFQN("search_activity")
	if len(got) != 1 || got[0] != "search_activity" {
		t.Fatalf("splitFQN(search_activity) = %v", got)
	}
}

// TestCreateTableSQL pins the bootstrap DDL so schema drift is visible in
// review instead of at load time.
func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := CreateTableSQL("public.search_activity")
	want := "" +
		`CREATE TABLE IF NOT EXISTS "public"."search_activity" (` + "\n" +
		`  "user_id" text NOT NULL,` + "\n" +
		`  "num_valid_searches" integer NOT NULL,` + "\n" +
		`  "avg_listings" double precision NOT NULL,` + "\n" +
		`  "type_of_search" text NOT NULL,` + "\n" +
		`  "list_of_valid_searches" text NOT NULL,` + "\n" +
		`  "run_date" date NOT NULL,` + "\n" +
		`  PRIMARY KEY ("run_date", "user_id")` + "\n" +
		`);`

	if got != want {
		t.Fatalf("CreateTableSQL() =\n%s\nwant:\n%s", got, want)
	}
}

// TestRows verifies the COPY row conversion, including the zero-valid skip
// that keeps the warehouse aligned with the summary artifact.
func TestRows(t *testing.T) {
	t.Parallel()

	runDate := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	users := []searches.UserSummary{
		{
			UserID:           "7",
			NumValidSearches: 2,
			AvgListings:      15.62,
			TypeOfSearch:     searches.TypeRental,
			ValidSearchIDs:   []string{"100", "300"},
		},
		{UserID: "9", NumValidSearches: 0},
	}

	got := Rows(users, runDate)
	want := [][]any{
		{"7", int32(2), 15.62, "rental", "['100', '300']", runDate},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rows() = %#v, want %#v", got, want)
	}
}

// fakeTx records the statements Load runs inside its transaction. The
// embedded pgx.Tx panics on anything Load is not supposed to touch.
type fakeTx struct {
	pgx.Tx

	execSQL    []string
	execErr    error
	copyErr    error
	copied     [][]any
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	for src.Next() {
		row, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.copied = append(f.copied, row)
	}
	return int64(len(f.copied)), nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

// txLoader builds a Loader whose transactions land on the given fake.
func txLoader(ftx *fakeTx) *Loader {
	return &Loader{
		cfg:   Config{Table: "public.search_activity"},
		begin: func(context.Context) (pgx.Tx, error) { return ftx, nil },
	}
}

func summaries() []searches.UserSummary {
	return []searches.UserSummary{
		{
			UserID:           "7",
			NumValidSearches: 2,
			AvgListings:      15.5,
			TypeOfSearch:     searches.TypeRental,
			ValidSearchIDs:   []string{"100", "300"},
		},
	}
}

// TestLoad_DeleteAndCopyShareOneTransaction verifies the happy path: the
// run date's rows are cleared, the new rows are copied, and only then is
// the transaction committed.
func TestLoad_DeleteAndCopyShareOneTransaction(t *testing.T) {
	t.Parallel()

	runDate := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	ftx := &fakeTx{}
	l := txLoader(ftx)

	n, err := l.Load(context.Background(), summaries(), runDate)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Load() = %d rows, want 1", n)
	}
	if !ftx.committed {
		t.Fatal("transaction was not committed")
	}
	if len(ftx.execSQL) != 1 || !strings.HasPrefix(ftx.execSQL[0], `DELETE FROM "public"."search_activity"`) {
		t.Fatalf("exec statements = %v, want one DELETE on the target", ftx.execSQL)
	}
	want := [][]any{
		{"7", int32(2), 15.5, "rental", "['100', '300']", runDate},
	}
	if !reflect.DeepEqual(ftx.copied, want) {
		t.Fatalf("copied rows = %#v, want %#v", ftx.copied, want)
	}
}

// TestLoad_CopyFailureRollsBack pins the recovery contract: when COPY
// fails, the delete must not survive, so the previous load for the date
// stays queryable.
func TestLoad_CopyFailureRollsBack(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	ftx := &fakeTx{copyErr: boom}
	l := txLoader(ftx)

	_, err := l.Load(context.Background(), summaries(), time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want wrapped copy error", err)
	}
	if ftx.committed {
		t.Fatal("failed copy must not commit")
	}
	if !ftx.rolledBack {
		t.Fatal("failed copy must roll back the delete")
	}
}

// TestLoad_DeleteFailureStopsBeforeCopy verifies nothing is copied when
// the clear step fails.
func TestLoad_DeleteFailureStopsBeforeCopy(t *testing.T) {
	t.Parallel()

	ftx := &fakeTx{execErr: errors.New("permission denied")}
	l := txLoader(ftx)

	_, err := l.Load(context.Background(), summaries(), time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	if err == nil || !strings.Contains(err.Error(), "clear run date") {
		t.Fatalf("Load() error = %v, want clear run date failure", err)
	}
	if len(ftx.copied) != 0 {
		t.Fatalf("copied %d rows after failed delete, want 0", len(ftx.copied))
	}
	if ftx.committed {
		t.Fatal("failed delete must not commit")
	}
}

// TestLoad_SkipsEmptyRuns verifies a run with no loadable rows never opens
// a transaction.
func TestLoad_SkipsEmptyRuns(t *testing.T) {
	t.Parallel()

	began := false
	l := &Loader{
		cfg: Config{Table: "public.search_activity"},
		begin: func(context.Context) (pgx.Tx, error) {
			began = true
			return nil, errors.New("unreachable")
		},
	}

	users := []searches.UserSummary{{UserID: "9", NumValidSearches: 0}}
	n, err := l.Load(context.Background(), users, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("Load() = (%d, %v), want (0, nil)", n, err)
	}
	if began {
		t.Fatal("empty load must not open a transaction")
	}
}

// TestLoad_BeginError surfaces pool failures with context.
func TestLoad_BeginError(t *testing.T) {
	t.Parallel()

	boom := errors.New("pool exhausted")
	l := &Loader{
		cfg:   Config{Table: "public.search_activity"},
		begin: func(context.Context) (pgx.Tx, error) { return nil, boom },
	}

	_, err := l.Load(context.Background(), summaries(), time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want wrapped begin error", err)
	}
}

// TestNewLoader_Validation covers configuration errors that must fail
// before any pool is created.
func TestNewLoader_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, _, err := NewLoader(ctx, Config{Table: "public.search_activity"}); err == nil {
		t.Fatalf("NewLoader without DSN should fail")
	}
	if _, _, err := NewLoader(ctx, Config{DSN: "postgres://u:p@localhost:5432/db"}); err == nil {
		t.Fatalf("NewLoader without table should fail")
	}

	l, closeFn, err := NewLoader(ctx, Config{
		DSN:   "postgres://u:p@localhost:5432/db",
		Table: "public.search_activity",
	})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	defer closeFn()
	if l == nil || l.pool == nil || l.begin == nil {
		t.Fatalf("NewLoader() returned unusable loader")
	}
}
