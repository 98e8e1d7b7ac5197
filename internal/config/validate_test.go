package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// goodJob returns a Job that passes validation; tests mutate copies of it.
func goodJob() Job {
	j := Job{
		Name: "search_activity_daily",
		Source: Source{
			Kind:   "objstore",
			Bucket: "udac",
			Key:    "raw/{ds}/searches.csv.gz",
		},
		Destinations: Destinations{
			UniqueSearches: Dest{Bucket: "lake", Key: "unique/{ds}/searches.csv"},
			UserSummary:    Dest{Bucket: "lake", Key: "summary/{ds}/users.csv"},
		},
		ObjectStore: ObjectStore{Endpoint: "minio:9000"},
	}
	j.ApplyDefaults()
	return j
}

/*
TestValidateJob_ValidMinimal verifies that a well-formed job produces no
issues (errors or warnings).
*/
func TestValidateJob_ValidMinimal(t *testing.T) {
	if issues := ValidateJob(goodJob()); len(issues) != 0 {
		t.Fatalf("expected no issues; got: %+v", issues)
	}
}

/*
TestValidateJob_MissingName verifies that a missing or empty Name field
produces a SeverityError with path "name".
*/
func TestValidateJob_MissingName(t *testing.T) {
	j := goodJob()
	j.Name = ""

	issues := ValidateJob(j)
	if !hasIssue(t, issues, SeverityError, "name", "must not be empty") {
		t.Fatalf("expected SeverityError for name; got issues: %+v", issues)
	}
}

// TestValidateJob_RequiredFields walks the per-section required fields and
// expects an error issue at each path.
func TestValidateJob_RequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Job)
		path   string
	}{
		{"bad source kind", func(j *Job) { j.Source.Kind = "ftp" }, "source.kind"},
		{"objstore source without bucket", func(j *Job) { j.Source.Bucket = "" }, "source.bucket"},
		{"objstore source without key", func(j *Job) { j.Source.Key = "" }, "source.key"},
		{"bad compression", func(j *Job) { j.Source.Compression = "zstd" }, "source.compression"},
		{"missing unique dest key", func(j *Job) { j.Destinations.UniqueSearches.Key = "" }, "destinations.unique_searches.key"},
		{"missing summary dest bucket", func(j *Job) { j.Destinations.UserSummary.Bucket = "" }, "destinations.user_summary.bucket"},
		{"missing endpoint", func(j *Job) { j.ObjectStore.Endpoint = "" }, "object_store.endpoint"},
		{"bad metrics backend", func(j *Job) { j.Metrics.Backend = "statsite" }, "metrics.backend"},
		{"pushgateway without addr", func(j *Job) { j.Metrics = Metrics{Backend: "pushgateway"} }, "metrics.addr"},
	}
	for _, tc := range cases {
		j := goodJob()
		tc.mutate(&j)
		issues := ValidateJob(j)
		found := false
		for _, iss := range issues {
			if iss.Severity == SeverityError && iss.Path == tc.path {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: no error at %q, got %+v", tc.name, tc.path, issues)
		}
	}
}

// TestValidateJob_CollidingDestinations rejects jobs whose two artifacts
// resolve to the same object.
func TestValidateJob_CollidingDestinations(t *testing.T) {
	j := goodJob()
	j.Destinations.UserSummary = j.Destinations.UniqueSearches

	issues := ValidateJob(j)
	if !hasIssue(t, issues, SeverityError, "destinations", "same object") {
		t.Fatalf("expected collision error; got issues: %+v", issues)
	}
}

// TestValidateJob_FileSource checks the file-kind path requirement.
func TestValidateJob_FileSource(t *testing.T) {
	j := goodJob()
	j.Source = Source{Kind: "file", Compression: "gzip"}

	issues := ValidateJob(j)
	if !hasIssue(t, issues, SeverityError, "source.path", "non-empty path") {
		t.Fatalf("expected source.path error; got issues: %+v", issues)
	}

	j.Source.Path = "testdata/searches.csv.gz"
	issues = ValidateJob(j)
	for _, iss := range issues {
		if strings.HasPrefix(iss.Path, "source") {
			t.Fatalf("file source with path should pass, got %+v", issues)
		}
	}
}

// TestValidateJob_HTTPSource checks the http-kind url requirement.
func TestValidateJob_HTTPSource(t *testing.T) {
	j := goodJob()
	j.Source = Source{Kind: "http", Compression: "gzip"}

	issues := ValidateJob(j)
	if !hasIssue(t, issues, SeverityError, "source.url", "non-empty url") {
		t.Fatalf("expected source.url error; got issues: %+v", issues)
	}

	j.Source.URL = "https://exports.internal/{ds}/searches.csv.gz"
	issues = ValidateJob(j)
	for _, iss := range issues {
		if strings.HasPrefix(iss.Path, "source") {
			t.Fatalf("http source with url should pass, got %+v", issues)
		}
	}
}

// TestValidateJob_Warehouse verifies enabled-only validation of the
// optional Postgres load.
func TestValidateJob_Warehouse(t *testing.T) {
	j := goodJob()
	j.Warehouse = Warehouse{Enabled: true}

	issues := ValidateJob(j)
	if !hasIssue(t, issues, SeverityError, "warehouse.dsn_env", "environment variable") {
		t.Fatalf("expected dsn_env error; got issues: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "warehouse.table", "must not be empty") {
		t.Fatalf("expected table error; got issues: %+v", issues)
	}

	j.Warehouse = Warehouse{}
	issues = ValidateJob(j)
	for _, iss := range issues {
		if strings.HasPrefix(iss.Path, "warehouse") {
			t.Fatalf("disabled warehouse must not be validated, got %+v", issues)
		}
	}
}
