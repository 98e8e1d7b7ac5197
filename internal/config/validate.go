// Package config provides the job model and helpers for the search
// activity ETL.
//
// This file adds a lightweight linter/validator for Job values. It performs
// static checks over a decoded Job and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Job.
//
// Path is a dotted path into the config (e.g. "source.kind",
// "destinations.user_summary.key"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateJob performs static validation / linting of a Job.
//
// It does not mutate the job. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "name",
			Message:  "name must not be empty; it labels logs and pushed metrics",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateDestinations(j.Destinations)...)
	issues = append(issues, validateObjectStore(j)...)
	issues = append(issues, validateWarehouse(j.Warehouse)...)
	issues = append(issues, validateMetrics(j.Metrics)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"objstore": {},
		"file":     {},
		"http":     {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want objstore, file, or http", s.Kind),
		})
		return issues
	}

	switch s.Kind {
	case "objstore":
		if strings.TrimSpace(s.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.bucket",
				Message:  "objstore source requires a non-empty bucket",
			})
		}
		if strings.TrimSpace(s.Key) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.key",
				Message:  "objstore source requires a non-empty key",
			})
		}
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(s.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.url",
				Message:  "http source requires a non-empty url",
			})
		}
	}

	switch s.Compression {
	case "gzip", "none":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.compression",
			Message:  fmt.Sprintf("unknown compression %q; want gzip or none", s.Compression),
		})
	}

	return issues
}

// validateDestinations requires both artifact locations and rejects
// configurations that would write both artifacts to the same object.
func validateDestinations(d Destinations) []Issue {
	var issues []Issue

	check := func(path string, dest Dest) {
		if strings.TrimSpace(dest.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".bucket",
				Message:  "destination bucket must not be empty",
			})
		}
		if strings.TrimSpace(dest.Key) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".key",
				Message:  "destination key must not be empty",
			})
		}
	}
	check("destinations.unique_searches", d.UniqueSearches)
	check("destinations.user_summary", d.UserSummary)

	if d.UniqueSearches.Bucket == d.UserSummary.Bucket &&
		d.UniqueSearches.Key == d.UserSummary.Key &&
		strings.TrimSpace(d.UniqueSearches.Key) != "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "destinations",
			Message:  "unique_searches and user_summary resolve to the same object; one would overwrite the other",
		})
	}

	return issues
}

// validateObjectStore checks the client endpoint whenever any configured
// location lives in the object store.
func validateObjectStore(j Job) []Issue {
	usesStore := j.Source.Kind == "objstore" ||
		j.Destinations.UniqueSearches.Bucket != "" ||
		j.Destinations.UserSummary.Bucket != ""
	if !usesStore {
		return nil
	}
	if strings.TrimSpace(j.ObjectStore.Endpoint) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "object_store.endpoint",
			Message:  "object_store.endpoint must not be empty when source or destinations use the store",
		}}
	}
	return nil
}

// validateWarehouse validates the optional Postgres load settings.
func validateWarehouse(w Warehouse) []Issue {
	if !w.Enabled {
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(w.DSNEnv) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn_env",
			Message:  "warehouse.dsn_env must name the environment variable holding the DSN",
		})
	}
	if strings.TrimSpace(w.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.table",
			Message:  "warehouse.table must not be empty",
		})
	}
	return issues
}

// validateMetrics validates the metrics backend selection.
func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"pushgateway": {},
		"datadog":     {},
		"none":        {},
	}
	if _, ok := known[m.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want pushgateway, datadog, or none", m.Backend),
		})
		return issues
	}

	if m.Backend != "none" && strings.TrimSpace(m.Addr) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.addr",
			Message:  fmt.Sprintf("metrics backend %q requires an addr", m.Backend),
		})
	}

	return issues
}
