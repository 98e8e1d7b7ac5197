package pipeline

import (
	"fmt"

	"searchetl/internal/config"
	"searchetl/internal/datasource"
	"searchetl/internal/datasource/file"
	"searchetl/internal/datasource/httpds"
	"searchetl/internal/objstore"
)

// BuildSource constructs the datasource for the job's source kind, with
// keys and paths rendered from the job vars. Object store keys are also
// dash-stripped after rendering; file paths and URLs are rendered as-is
// since stripping would corrupt them.
//
// store may be nil when the job does not read from the object store; httpc
// may be nil to use default HTTP retry settings.
func BuildSource(job config.Job, store *objstore.Client, httpc *httpds.Client) (datasource.Source, error) {
	switch job.Source.Kind {
	case "objstore":
		if store == nil {
			return nil, fmt.Errorf("pipeline: source kind objstore requires a store client")
		}
		key, err := config.ResolveKey(job.Source.Key, job.Vars)
		if err != nil {
			return nil, fmt.Errorf("source key: %w", err)
		}
		return objstore.NewObject(store, job.Source.Bucket, key), nil

	case "file":
		path, err := config.RenderKey(job.Source.Path, job.Vars)
		if err != nil {
			return nil, fmt.Errorf("source path: %w", err)
		}
		return file.NewLocal(path), nil

	case "http":
		url, err := config.RenderKey(job.Source.URL, job.Vars)
		if err != nil {
			return nil, fmt.Errorf("source url: %w", err)
		}
		return httpds.NewFetch(httpc, url), nil

	default:
		return nil, fmt.Errorf("pipeline: unsupported source kind %q", job.Source.Kind)
	}
}
