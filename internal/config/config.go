// Package config defines the canonical, JSON-serializable job model for the
// search activity ETL. A job names one input object, the two derived
// artifacts, and the backends involved in a run.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in job
//     files under configs/jobs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library. Credentials never appear in job files, only in
//     the environment.
//
// Example (trimmed):
//
//	{
//	  "name":   "search_activity_daily",
//	  "source": { "kind": "objstore", "bucket": "udac", "key": "raw/{ds}/searches.csv.gz" },
//	  "destinations": {
//	    "unique_searches": { "bucket": "lake", "key": "unique/{ds}/searches.csv" },
//	    "user_summary":    { "bucket": "lake", "key": "summary/{ds}/users.csv" }
//	  },
//	  "object_store": { "endpoint": "minio:9000", "secure": false }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Job describes one complete run of the pipeline. It is the top-level
// object decoded from a job file.
type Job struct {
	// Name identifies the run in logs and metrics labels.
	Name string `json:"name"`

	// Source describes where the raw gzip CSV comes from.
	Source Source `json:"source"`

	// Destinations names the two derived artifacts.
	Destinations Destinations `json:"destinations"`

	// ObjectStore configures the store client shared by source and sinks.
	ObjectStore ObjectStore `json:"object_store"`

	// Warehouse optionally loads the summary table into Postgres.
	Warehouse Warehouse `json:"warehouse"`

	// Metrics selects the metrics backend for the run.
	Metrics Metrics `json:"metrics"`

	// Vars supplies default values for {name} tokens in configured keys.
	// CLI-provided vars override entries here.
	Vars map[string]string `json:"vars"`
}

// Source identifies the input object. Keys, paths, and URLs may carry
// {name} placeholder tokens.
type Source struct {
	// Kind selects the source implementation: "objstore", "file", or "http".
	Kind string `json:"kind"`

	// Bucket and Key locate the object for the "objstore" kind.
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// Path is the local input file for the "file" kind.
	Path string `json:"path"`

	// URL is the download location for the "http" kind.
	URL string `json:"url"`

	// Compression is "gzip" (default) or "none".
	Compression string `json:"compression"`
}

// Destinations holds the two artifact locations. Both are required and
// must not collide.
type Destinations struct {
	UniqueSearches Dest `json:"unique_searches"`
	UserSummary    Dest `json:"user_summary"`
}

// Dest locates one output artifact in the object store.
type Dest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ObjectStore configures the S3-compatible client. Credentials come from
// the OBJSTORE_ACCESS_KEY / OBJSTORE_SECRET_KEY environment variables.
type ObjectStore struct {
	Endpoint string `json:"endpoint"`
	Secure   bool   `json:"secure"`
}

// Warehouse configures the optional Postgres load of the summary table.
type Warehouse struct {
	Enabled bool `json:"enabled"`

	// DSNEnv names the environment variable holding the pgx DSN; the DSN
	// itself never lives in a job file.
	DSNEnv string `json:"dsn_env"`

	// Table is the fully qualified target (e.g., "public.search_activity").
	Table string `json:"table"`

	// AutoCreateTable applies the bootstrap DDL before loading.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Metrics selects and configures the metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "datadog", or "none" (default).
	Backend string `json:"backend"`

	// Addr is the pushgateway URL or the dogstatsd host:port.
	Addr string `json:"addr"`

	// Job labels pushed metrics; defaults to the job name.
	Job string `json:"job"`
}

// Load reads and decodes a job file, then applies defaults. Unknown fields
// are rejected so typos in job files surface at load time instead of as
// silently-missing configuration.
func Load(path string) (Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return Job{}, fmt.Errorf("open job file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var j Job
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode %s: %w", path, err)
	}
	j.ApplyDefaults()
	return j, nil
}

// ApplyDefaults fills the zero-value fields that have a documented default.
func (j *Job) ApplyDefaults() {
	if j.Source.Kind == "" {
		j.Source.Kind = "objstore"
	}
	if j.Source.Compression == "" {
		j.Source.Compression = "gzip"
	}
	if j.Metrics.Backend == "" {
		j.Metrics.Backend = "none"
	}
	if j.Metrics.Job == "" {
		j.Metrics.Job = j.Name
	}
	if j.Vars == nil {
		j.Vars = map[string]string{}
	}
}

// varPattern matches {name} placeholder tokens in configured keys.
var varPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderKey substitutes {name} tokens from vars. An unresolved token is an
// error so a missing runtime var cannot silently produce a wrong path.
func RenderKey(template string, vars map[string]string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(template, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		missing = append(missing, name)
		return tok
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved vars %v in %q", missing, template)
	}
	return out, nil
}

// StripDashes removes every literal '-' from a rendered key. The store
// layout uses dash-free keys even though runtime vars, dates in
// particular, usually carry dashes.
func StripDashes(key string) string {
	return strings.ReplaceAll(key, "-", "")
}

// ResolveKey renders a key template and applies the dash strip. Every
// configured location goes through this, source and destinations alike.
func ResolveKey(template string, vars map[string]string) (string, error) {
	rendered, err := RenderKey(template, vars)
	if err != nil {
		return "", err
	}
	return StripDashes(rendered), nil
}
