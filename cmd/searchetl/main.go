package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"searchetl/internal/config"
	"searchetl/internal/logging"
	"searchetl/internal/metrics"
	"searchetl/internal/metrics/datadog"
	"searchetl/internal/metrics/prompush"
	"searchetl/internal/objstore"
	"searchetl/internal/pipeline"
	"searchetl/internal/sink"
	"searchetl/internal/warehouse"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// varFlag collects repeatable -var name=value substitutions.
type varFlag map[string]string

func (v varFlag) String() string {
	pairs := make([]string, 0, len(v))
	for name, val := range v {
		pairs = append(pairs, name+"="+val)
	}
	return strings.Join(pairs, ",")
}

func (v varFlag) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	v[name] = val
	return nil
}

// main loads a job file, wires source, sink, metrics, and the optional
// warehouse loader, and executes one run.
func main() {
	var (
		jobPath    string
		envFile    string
		outDir     string
		backendFlg string
		addrFlg    string
		logLevel   string
		logFormat  string
		validate   bool
		ensure     bool
	)
	vars := varFlag{}

	flag.StringVar(&jobPath, "job", "configs/jobs/search_activity.json", "job file path")
	flag.Var(vars, "var", "set a {name} substitution as name=value (repeatable)")
	flag.StringVar(&envFile, "env", "", "load environment variables from this file first")
	flag.StringVar(&outDir, "out-dir", "", "write artifacts under this directory instead of the object store")
	flag.StringVar(&backendFlg, "metrics-backend", "", "override the job's metrics backend (pushgateway, datadog, none)")
	flag.StringVar(&addrFlg, "metrics-addr", "", "override the metrics address (Pushgateway URL or dogstatsd host:port)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&logFormat, "log-format", "console", "log encoding (console, json)")
	flag.BoolVar(&validate, "validate", false, "validate the job file and exit")
	flag.BoolVar(&ensure, "ensure-buckets", false, "create missing destination buckets before uploading")
	flag.Parse()

	// Environment first: job files never carry credentials. A missing env
	// file is fatal only when it was named explicitly.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fatalf("load env file: %v", err)
		}
	} else {
		_ = godotenv.Load()
	}

	job, err := config.Load(jobPath)
	if err != nil {
		fatalf("%v", err)
	}
	for name, val := range vars {
		job.Vars[name] = val
	}

	issues := config.ValidateJob(job)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("job file is invalid: %s", jobPath)
	}
	if validate {
		fmt.Printf("job file is valid: %s\n", jobPath)
		return
	}

	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()

	setupMetrics(job, backendFlg, addrFlg, logger)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush", zap.Error(err))
		}
	}()

	ctx := context.Background()
	start := time.Now()

	// The store client is shared by the objstore source and the store sink;
	// skip it entirely for local file-to-directory runs.
	var store *objstore.Client
	if job.Source.Kind == "objstore" || outDir == "" {
		access, secret, err := objstore.CredentialsFromEnv()
		if err != nil {
			fatalf("%v", err)
		}
		store, err = objstore.New(objstore.Config{
			Endpoint:  job.ObjectStore.Endpoint,
			AccessKey: access,
			SecretKey: secret,
			Secure:    job.ObjectStore.Secure,
		})
		if err != nil {
			fatalf("%v", err)
		}
	}

	src, err := pipeline.BuildSource(job, store, nil)
	if err != nil {
		fatalf("%v", err)
	}

	var snk sink.Sink
	if outDir != "" {
		snk = sink.NewDir(outDir)
	} else {
		snk = sink.NewStore(store, ensure)
	}

	var loader *warehouse.Loader
	if job.Warehouse.Enabled {
		dsn := os.Getenv(job.Warehouse.DSNEnv)
		if dsn == "" {
			fatalf("warehouse is enabled but %s is empty", job.Warehouse.DSNEnv)
		}
		l, closeFn, err := warehouse.NewLoader(ctx, warehouse.Config{DSN: dsn, Table: job.Warehouse.Table})
		if err != nil {
			fatalf("%v", err)
		}
		defer closeFn()
		loader = l
	}

	stats, err := pipeline.Run(ctx, pipeline.Deps{
		Job:    job,
		Source: src,
		Sink:   snk,
		Loader: loader,
		Logger: logger,
	})
	if err != nil {
		logger.Error("run failed", zap.String("job", job.Name), zap.Error(err))
		if ferr := metrics.Flush(); ferr != nil {
			logger.Warn("metrics flush", zap.Error(ferr))
		}
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("run complete",
		zap.String("job", job.Name),
		zap.Int("rows_in", stats.RowsIn),
		zap.Int("users", stats.UsersKept),
		zap.Int("valid_searches", stats.ValidSearches),
		zap.Int("unique_ids", stats.UniqueIDs),
		zap.Int64("warehouse_rows", stats.WarehouseRows),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
}

// setupMetrics installs the selected backend. Flag values win over the job
// file; init failures leave the nop backend in place rather than stopping
// the run.
func setupMetrics(job config.Job, backendFlg, addrFlg string, logger *zap.Logger) {
	backend := backendFlg
	if backend == "" {
		backend = job.Metrics.Backend
	}
	addr := addrFlg
	if addr == "" {
		addr = job.Metrics.Addr
	}

	switch backend {
	case "pushgateway":
		addr = pick(addr, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(job.Metrics.Job, addr)
		if err != nil {
			logger.Warn("metrics: pushgateway init failed; using nop", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		logger.Info("metrics: pushgateway", zap.String("url", addr), zap.String("job", job.Metrics.Job))

	case "datadog":
		addr = pick(addr, os.Getenv("DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "searchetl.",
			GlobalTags: []string{"job:" + job.Metrics.Job},
		})
		if err != nil {
			logger.Warn("metrics: datadog init failed; using nop", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		logger.Info("metrics: datadog", zap.String("addr", addr))

	case "", "none":
		logger.Debug("metrics: disabled")

	default:
		logger.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", backend))
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
