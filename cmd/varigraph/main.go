package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/config"
	"github.com/varigraph/varigraph/internal/engine"
	"github.com/varigraph/varigraph/internal/eventbus"
	"github.com/varigraph/varigraph/internal/logging"
	"github.com/varigraph/varigraph/internal/metrics"
	"github.com/varigraph/varigraph/internal/otel"
	"github.com/varigraph/varigraph/internal/provider"
	"github.com/varigraph/varigraph/internal/resolver"
	"github.com/varigraph/varigraph/internal/schema"
	"github.com/varigraph/varigraph/internal/server"
)

const rootUsage = `varigraph — genomic variation GraphQL service

USAGE:
  varigraph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint
  query            Execute a single query against the configured dataset
  validate         Check the manifest and resolver wiring, then exit
  load             Load a document file into a sqlite store
  help             Show help for any command

Service settings are read from VARIGRAPH_* environment variables
(and a .env file when present). The dataset is described by a YAML
manifest; without one the embedded sample dataset is served.
`

const serveUsage = `serve FLAGS:
  -manifest <file>           Dataset manifest (default: $VARIGRAPH_MANIFEST,
                             or the embedded sample dataset)
  -addr <addr>               HTTP listen address (default: $VARIGRAPH_ADDR or :8080)
  -pretty                    Pretty-print JSON responses
  -timeout <duration>        Per-request timeout, e.g. 10s (default: 10s)
  -otel.endpoint <addr>      OTLP collector endpoint
  -otel.service <name>       OpenTelemetry service name (default: varigraph)
`

const queryUsage = `query FLAGS:
  -manifest <file>           Dataset manifest (default: embedded sample dataset)
  -q <query>                 GraphQL query string (or read from stdin)
  -variables <json>          Variables as a JSON object
  -operation <name>          Operation name for multi-operation documents
  -timeout <duration>        Execution timeout (default: 10s)
`

const validateUsage = `validate FLAGS:
  -manifest <file>           Dataset manifest to check (default: embedded
                             sample dataset)
  (Builds the schema and resolver registry; exits non-zero on problems)
`

const loadUsage = `load FLAGS:
  -db <file>                 sqlite database file (required; created if absent)
  -docs <file>               Document file to load (default: the embedded
                             sample dataset)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("varigraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "query":
		return cmdQuery(cmdArgs)
	case "validate":
		return cmdValidate(cmdArgs)
	case "load":
		return cmdLoad(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "query":
		fmt.Print(queryUsage)
	case "validate":
		fmt.Print(validateUsage)
	case "load":
		fmt.Print(loadUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// buildStack assembles the provider, schema, registry and engine for a
// manifest. The returned closer releases the store (a no-op for memory).
func buildStack(m config.Manifest, discriminant string) (*engine.Engine, *schema.Schema, func() error, error) {
	p, closer, err := buildProvider(m.Store)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := schema.Variation()
	if err != nil {
		closer()
		return nil, nil, nil, fmt.Errorf("build schema: %w", err)
	}
	reg, err := resolver.NewRegistry(s, provider.Instrument(p), m.GenomeIDs())
	if err != nil {
		closer()
		return nil, nil, nil, err
	}
	var opts []engine.Option
	if discriminant != "" {
		opts = append(opts, engine.WithDiscriminantField(discriminant))
	}
	return engine.New(s, reg, opts...), s, closer, nil
}

func buildProvider(st config.Store) (provider.Provider, func() error, error) {
	switch st.Driver {
	case "", "memory":
		if st.Seed == "" {
			return provider.Seed(), func() error { return nil }, nil
		}
		docs, err := provider.ReadDocumentsFile(st.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("reading seed %s: %w", st.Seed, err)
		}
		mem := provider.NewMemory()
		mem.Load(docs)
		return mem, func() error { return nil }, nil
	case "sqlite":
		db, err := provider.OpenSQLite(st.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store %s: %w", st.Path, err)
		}
		if st.Seed != "" {
			docs, err := provider.ReadDocumentsFile(st.Seed)
			if err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("reading seed %s: %w", st.Seed, err)
			}
			if err := db.Load(context.Background(), docs); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("loading seed %s: %w", st.Seed, err)
			}
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", st.Driver)
	}
}

func cmdServe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	manifestPath := cfg.Manifest
	addr := cfg.Addr
	pretty := cfg.Pretty
	timeout := cfg.Timeout
	otelEndpoint := cfg.OTLPEndpoint
	otelService := "varigraph"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&manifestPath, "manifest", manifestPath, "Dataset manifest")
	fs.StringVar(&addr, "addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "timeout", timeout, "Per-request timeout")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer logger.Sync()
	logging.Attach(logger)

	m := metrics.New()
	m.Attach()

	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	eng, s, closeStore, err := buildStack(manifest, cfg.Discriminant)
	if err != nil {
		return err
	}
	defer closeStore()

	sopts := []server.Option{server.WithMaxBodyBytes(cfg.MaxBodyBytes)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(cfg.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.CORSOrigins...))
	}
	h := server.New(eng, s, sopts...)

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.Handle("/metrics", m.Handler())

	logger.Info("varigraph listening",
		zap.String("addr", addr),
		zap.String("store", manifest.Store.Driver),
	)
	return http.ListenAndServe(addr, mux)
}

func cmdQuery(args []string) error {
	manifestPath := ""
	queryStr := ""
	variablesJSON := ""
	operation := ""
	timeout := 10 * time.Second

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&manifestPath, "manifest", manifestPath, "Dataset manifest")
	fs.StringVar(&queryStr, "q", queryStr, "GraphQL query string")
	fs.StringVar(&variablesJSON, "variables", variablesJSON, "Variables as JSON")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	fs.DurationVar(&timeout, "timeout", timeout, "Execution timeout")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, queryUsage)
		return err
	}
	if queryStr == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading query from stdin: %w", err)
		}
		queryStr = string(raw)
	}
	if queryStr == "" {
		fmt.Fprint(os.Stderr, queryUsage)
		return fmt.Errorf("no query given")
	}
	var variables map[string]any
	if variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &variables); err != nil {
			return fmt.Errorf("parsing variables: %w", err)
		}
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	eng, s, closeStore, err := buildStack(manifest, "")
	if err != nil {
		return err
	}
	defer closeStore()

	plan, cerrs := compiler.Compile(s, queryStr, operation, variables)
	if len(cerrs) > 0 {
		for _, ce := range cerrs {
			fmt.Fprintln(os.Stderr, ce.Error())
		}
		return fmt.Errorf("query does not compile")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	result := eng.Execute(ctx, plan)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if len(result.Errors) > 0 {
		return fmt.Errorf("query finished with %d errors", len(result.Errors))
	}
	return nil
}

func cmdValidate(args []string) error {
	manifestPath := ""
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&manifestPath, "manifest", manifestPath, "Dataset manifest")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, validateUsage)
		return err
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	s, err := schema.Variation()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	// The registry only touches the provider at execution time, so an
	// empty store is enough to check the wiring.
	if _, err := resolver.NewRegistry(s, provider.NewMemory(), manifest.GenomeIDs()); err != nil {
		return err
	}
	fmt.Printf("ok: %d genomes, %s store\n", len(manifest.Genomes), manifest.Store.Driver)
	return nil
}

func cmdLoad(args []string) error {
	dbPath := ""
	docsPath := ""
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&dbPath, "db", dbPath, "sqlite database file")
	fs.StringVar(&docsPath, "docs", docsPath, "Document file to load")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, loadUsage)
		return err
	}
	if dbPath == "" {
		fmt.Fprint(os.Stderr, loadUsage)
		return fmt.Errorf("-db is required")
	}

	var docs []provider.Document
	if docsPath == "" {
		docs = provider.SeedDocuments()
	} else {
		var err error
		docs, err = provider.ReadDocumentsFile(docsPath)
		if err != nil {
			return fmt.Errorf("reading documents %s: %w", docsPath, err)
		}
	}

	db, err := provider.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("opening sqlite store %s: %w", dbPath, err)
	}
	defer db.Close()
	if err := db.Load(context.Background(), docs); err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	fmt.Printf("loaded %d documents into %s\n", len(docs), dbPath)
	return nil
}
