// Tcgd is a test case generation daemon with an HTTP transport.
//
// The daemon fronts a human-supervised pipeline: free-text prompts are
// classified at intake, requirement statements open a staged request
// that produces test cases, JUnit artifacts, execution results, and a
// Jira export, each stage gated on an explicit continue decision.
//
// Configuration is loaded from ~/.config/tcgd/config.yaml with
// environment variable overrides. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	tcgd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=8080 GENAI_API_KEY=... tcgd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tcgd/internal/artifacts"
	"github.com/fyrsmithlabs/tcgd/internal/config"
	"github.com/fyrsmithlabs/tcgd/internal/genai"
	httpserver "github.com/fyrsmithlabs/tcgd/internal/http"
	"github.com/fyrsmithlabs/tcgd/internal/intake"
	"github.com/fyrsmithlabs/tcgd/internal/jira"
	"github.com/fyrsmithlabs/tcgd/internal/logging"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
	"github.com/fyrsmithlabs/tcgd/internal/qadb"
	"github.com/fyrsmithlabs/tcgd/internal/results"
	"github.com/fyrsmithlabs/tcgd/internal/stages"
	"github.com/fyrsmithlabs/tcgd/internal/telemetry"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/tcgd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  tcgd           Start the tcgd daemon\n")
			fmt.Fprintf(os.Stderr, "  tcgd version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("tcgd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the tcgd daemon and blocks until the context is cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes telemetry and logger
//  3. Opens the artifact store and QA database
//  4. Creates the model client and collaborators
//  5. Wires the stage executors into the orchestrator
//  6. Starts the HTTP server
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	// Load configuration
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize telemetry
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.ServiceName = cfg.Telemetry.ServiceName
	tcfg.ServiceVersion = version
	tcfg.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.Endpoint != "" {
		tcfg.Endpoint = cfg.Telemetry.Endpoint
	}
	tel, err := telemetry.New(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	// Initialize logger
	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zlog := logger.Underlying()

	zlog.Info("Starting tcgd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.GenAI.Model),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	// Model client and intake collaborators
	client, err := genai.NewClient(genai.Config{
		Model:       cfg.GenAI.Model,
		BaseURL:     cfg.GenAI.BaseURL,
		APIKey:      cfg.GenAI.APIKey.Value(),
		Timeout:     cfg.GenAI.Timeout.Duration(),
		RateLimit:   cfg.GenAI.RateLimit,
		Burst:       cfg.GenAI.Burst,
		Temperature: cfg.GenAI.Temperature,
	}, zlog.Named("genai"))
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	// QA database (optional)
	var recorder stages.Recorder
	if cfg.QADB.Path != "" {
		store, err := qadb.Open(cfg.QADB.Path)
		if err != nil {
			return fmt.Errorf("failed to open qa database: %w", err)
		}
		defer store.Close()
		recorder = store
		zlog.Info("QA database opened", zap.String("path", cfg.QADB.Path))
	}

	// Artifact store
	blobStore, err := artifacts.NewFSStore(cfg.Artifacts.Root)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	artifactGen := artifacts.NewGenerator(blobStore, cfg.Artifacts.SampleMirrorDir, zlog.Named("artifacts"))

	// Test runner
	workDir := cfg.Runner.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "tcgd", "runner")
	}
	runner, err := results.NewRunner(results.RunnerConfig{
		Command:   cfg.Runner.Command,
		WorkDir:   workDir,
		ReportDir: cfg.Runner.ReportDir,
	}, blobStore, zlog.Named("runner"))
	if err != nil {
		return fmt.Errorf("failed to create test runner: %w", err)
	}

	// Jira exporter
	var exporter stages.IssueExporter
	if cfg.Jira.Enabled() {
		jiraClient, err := jira.NewClient(jira.Config{
			BaseURL:   cfg.Jira.BaseURL,
			Project:   cfg.Jira.Project,
			IssueType: cfg.Jira.IssueType,
			User:      cfg.Jira.User,
			APIToken:  cfg.Jira.APIToken,
			Timeout:   cfg.Jira.Timeout,
		}, zlog.Named("jira"))
		if err != nil {
			return fmt.Errorf("failed to create jira client: %w", err)
		}
		exporter = jira.NewExporter(jiraClient, zlog.Named("jira"))
		zlog.Info("Jira export enabled",
			zap.String("base_url", cfg.Jira.BaseURL),
			zap.String("project", cfg.Jira.Project))
	} else {
		exporter = disabledExporter{}
		zlog.Warn("Jira export not configured; jira stage will fail until it is")
	}

	// Pipeline orchestrator and stage executors
	caseGen := testgen.NewGenerator(client, zlog.Named("testgen"))
	requestStore := pipeline.NewMemoryStore()
	orch, err := pipeline.NewOrchestrator(&pipeline.Config{
		StageTimeout: cfg.Pipeline.StageTimeout.Duration(),
	}, requestStore, zlog.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	orch.RegisterExecutor(stages.NewRequirementExecutor(recorder, zlog.Named("stages")))
	orch.RegisterExecutor(stages.NewTestCasesExecutor(caseGen, recorder, zlog.Named("stages")))
	orch.RegisterExecutor(stages.NewSamplesJUnitExecutor(artifactGen, zlog.Named("stages")))
	orch.RegisterExecutor(stages.NewTestResultsExecutor(runner, recorder, zlog.Named("stages")))
	orch.RegisterExecutor(stages.NewJiraExecutor(exporter, zlog.Named("stages")))

	// Intake router
	router := intake.NewRouter(
		genai.NewClassifier(client),
		genai.NewAnswerer(client),
		orch,
		zlog.Named("intake"),
	)

	// HTTP server
	srv, err := httpserver.NewServer(router, orch, requestStore, &httpserver.Tools{
		Cases:     caseGen,
		Artifacts: artifactGen,
		Runner:    runner,
		Exporter:  exporter,
		Logger:    zlog.Named("tools"),
	}, logger.Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// initLogger builds the structured logger from config, bridging to
// OTEL when telemetry is enabled.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	lcfg.Format = cfg.Logging.Format

	var level zapcore.Level
	if err := level.Set(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	lcfg.Level = level

	provider := tel.LoggerProvider()
	if provider != nil {
		lcfg.Output.OTEL = true
	}
	return logging.NewLogger(lcfg, provider)
}

// disabledExporter fails the jira stage until Jira is configured. The
// failure surfaces as a retryable collaborator error, so configuring
// Jira and re-issuing the continue recovers the request.
type disabledExporter struct{}

func (disabledExporter) Export(context.Context, string, []testgen.TestCase, []results.Result) ([]jira.IssueRef, error) {
	return nil, fmt.Errorf("jira export is not configured")
}
