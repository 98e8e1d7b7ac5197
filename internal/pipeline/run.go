// Package pipeline executes one complete run: read the raw search export,
// aggregate per-user activity, render the two artifacts, upload them, and
// optionally load the warehouse.
//
// Design goals:
//
//   - One linear pass; the export for a day fits in memory, so there is no
//     streaming machinery here.
//   - Fail hard on malformed input. A chunk without an enabled flag or a
//     non-numeric count aborts the run instead of skewing the aggregates.
//   - Deterministic artifacts: the same input renders byte-identical CSVs,
//     so re-runs are safe to overwrite.
//   - Everything injectable: sources and sinks are interfaces, tests run
//     the whole pipeline in memory.
package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"searchetl/internal/config"
	"searchetl/internal/datasource"
	"searchetl/internal/metrics"
	"searchetl/internal/searches"
	"searchetl/internal/sink"
	"searchetl/internal/warehouse"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps carries everything Run needs. Source and Sink are interfaces so
// tests can drive the whole pipeline against in-memory fakes.
type Deps struct {
	Job    config.Job
	Source datasource.Source
	Sink   sink.Sink

	// Loader is optional; nil skips the warehouse step even when the job
	// enables it.
	Loader *warehouse.Loader

	// Logger defaults to a nop logger when nil.
	Logger *zap.Logger
}

// Stats summarizes one run for logs and the CLI exit message.
type Stats struct {
	RowsIn        int // users in the raw export
	UsersKept     int // users with at least one valid search
	ValidSearches int
	UniqueIDs     int

	SummaryBytes  int
	UniqueBytes   int
	WarehouseRows int64
}

// Run executes the pipeline for d.Job. The returned error is fatal; no
// artifact is written unless the whole aggregation succeeded.
func Run(ctx context.Context, d Deps) (Stats, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	job := d.Job

	var stats Stats

	// 1) Read the export and summarize every user.
	stepStart := time.Now()
	sums, rows, err := aggregate(ctx, d.Source, job.Source.Compression)
	metrics.RecordStep(job.Name, "extract", err, time.Since(stepStart))
	if err != nil {
		return stats, err
	}
	stats.RowsIn = rows
	metrics.RecordRows(job.Name, "rows_in", int64(rows))
	log.Debug("export read", zap.Int("rows", rows))

	// 2) Build the report and log the run counters.
	rep := searches.BuildReport(sums)
	stats.UsersKept = rep.TotalUsers
	stats.ValidSearches = rep.TotalValidSearches
	stats.UniqueIDs = len(rep.UniqueIDs.Rows)

	log.Info("valid searches", zap.Int("count", rep.TotalValidSearches))
	log.Info("users with valid searches", zap.Int("count", rep.TotalUsers))
	metrics.RecordRows(job.Name, "valid_searches", int64(rep.TotalValidSearches))
	metrics.RecordRows(job.Name, "users_kept", int64(rep.TotalUsers))
	metrics.RecordRows(job.Name, "unique_ids", int64(stats.UniqueIDs))

	// 3) Render both CSV artifacts and upload them.
	stepStart = time.Now()
	summaryData, uniqueData, err := renderArtifacts(rep)
	if err == nil {
		stats.SummaryBytes = len(summaryData)
		stats.UniqueBytes = len(uniqueData)
		err = d.upload(ctx, log, rep, summaryData, uniqueData)
	}
	metrics.RecordStep(job.Name, "render_upload", err, time.Since(stepStart))
	if err != nil {
		return stats, err
	}

	// 4) Optional warehouse load, keyed by the run date.
	if job.Warehouse.Enabled && d.Loader != nil {
		stepStart = time.Now()
		n, err := d.loadWarehouse(ctx, sums)
		metrics.RecordStep(job.Name, "warehouse", err, time.Since(stepStart))
		if err != nil {
			return stats, err
		}
		stats.WarehouseRows = n
		metrics.RecordRows(job.Name, "warehouse_rows", n)
		log.Info("warehouse loaded", zap.Int64("rows", n), zap.String("table", job.Warehouse.Table))
	}

	return stats, nil
}

// aggregate opens the source, decompresses when configured, and summarizes
// each (user_id, searches) row. The export is headerless with exactly two
// columns.
func aggregate(ctx context.Context, src datasource.Source, compression string) ([]searches.UserSummary, int, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if compression == "gzip" {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, 0, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	var sums []searches.UserSummary
	rows := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rows, fmt.Errorf("read export row %d: %w", rows+1, err)
		}
		rows++

		sum, err := searches.Summarize(rec[0], rec[1])
		if err != nil {
			return nil, rows, fmt.Errorf("user %s: %w", rec[0], err)
		}
		sums = append(sums, sum)
	}
	return sums, rows, nil
}

// upload resolves both destination keys and writes the artifacts
// concurrently. Either failure aborts the other upload via the group
// context.
func (d Deps) upload(ctx context.Context, log *zap.Logger, rep searches.Report, summaryData, uniqueData []byte) error {
	job := d.Job

	uniqueKey, err := config.ResolveKey(job.Destinations.UniqueSearches.Key, job.Vars)
	if err != nil {
		return fmt.Errorf("unique_searches key: %w", err)
	}
	summaryKey, err := config.ResolveKey(job.Destinations.UserSummary.Key, job.Vars)
	if err != nil {
		return fmt.Errorf("user_summary key: %w", err)
	}

	put := func(ctx context.Context, name string, dest config.Dest, key string, data []byte, rows int) error {
		a := sink.Artifact{
			Bucket:      dest.Bucket,
			Key:         key,
			ContentType: "text/csv",
			Metadata: map[string]string{
				"digest-xxh3": digest(data),
				"rows":        strconv.Itoa(rows),
			},
		}
		if err := d.Sink.Put(ctx, a, data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		metrics.RecordArtifact(job.Name, name, int64(len(data)))
		log.Info("artifact written",
			zap.String("artifact", name),
			zap.String("bucket", dest.Bucket),
			zap.String("key", key),
			zap.Int("bytes", len(data)),
			zap.Int("rows", rows),
		)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return put(gctx, "unique_searches", job.Destinations.UniqueSearches, uniqueKey, uniqueData, len(rep.UniqueIDs.Rows))
	})
	g.Go(func() error {
		return put(gctx, "user_summary", job.Destinations.UserSummary, summaryKey, summaryData, len(rep.Summary.Rows))
	})
	return g.Wait()
}

// loadWarehouse applies the bootstrap DDL when configured and replaces the
// run date's rows. The date is resolved first so a bad ds var fails before
// the database is touched.
func (d Deps) loadWarehouse(ctx context.Context, sums []searches.UserSummary) (int64, error) {
	day, err := runDate(d.Job.Vars)
	if err != nil {
		return 0, err
	}
	if d.Job.Warehouse.AutoCreateTable {
		if err := d.Loader.EnsureTable(ctx); err != nil {
			return 0, err
		}
	}
	return d.Loader.Load(ctx, sums, day)
}

// renderArtifacts encodes both tables to CSV bytes.
func renderArtifacts(rep searches.Report) (summary, unique []byte, err error) {
	if summary, err = renderTable(rep.Summary); err != nil {
		return nil, nil, err
	}
	if unique, err = renderTable(rep.UniqueIDs); err != nil {
		return nil, nil, err
	}
	return summary, unique, nil
}

func renderTable(t searches.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}

// digest returns a fixed-width hex xxh3 of the artifact bytes, stored in
// object metadata so downstream copies can be verified cheaply.
func digest(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// runDate resolves the warehouse partition date from the job vars (the
// "ds" convention). A malformed value is an error, not a fallback: a
// typo'd date would load the day under the wrong partition while the
// artifacts land under the rendered key. Only an absent var falls back to
// today in UTC.
func runDate(vars map[string]string) (time.Time, error) {
	if ds, ok := vars["ds"]; ok {
		t, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return time.Time{}, fmt.Errorf("var ds %q: want YYYY-MM-DD: %w", ds, err)
		}
		return t, nil
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}
