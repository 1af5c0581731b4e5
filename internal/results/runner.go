package results

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/artifacts"
)

// RunnerConfig controls how generated tests are executed.
type RunnerConfig struct {
	// Command is the build tool invocation, e.g. ["mvn", "-q", "test"].
	Command []string `koanf:"command"`

	// WorkDir is the Maven project the sources are materialized into.
	WorkDir string `koanf:"work_dir"`

	// ReportDir holds the Surefire XML reports after a run. Defaults
	// to <work_dir>/target/surefire-reports.
	ReportDir string `koanf:"report_dir"`
}

// Validate checks the runner configuration.
func (c *RunnerConfig) Validate() error {
	if len(c.Command) == 0 {
		return fmt.Errorf("runner command is required")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("runner work_dir is required")
	}
	return nil
}

func (c *RunnerConfig) reportDir() string {
	if c.ReportDir != "" {
		return c.ReportDir
	}
	return filepath.Join(c.WorkDir, "target", "surefire-reports")
}

// Runner materializes generated JUnit sources into a Maven project,
// runs them, and parses the Surefire reports.
type Runner struct {
	cfg    RunnerConfig
	store  artifacts.BlobStore
	logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig, store artifacts.BlobStore, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, store: store, logger: logger}, nil
}

// Run executes the referenced JUnit sources and returns their results.
func (r *Runner) Run(ctx context.Context, junitRefs []string) ([]Result, error) {
	if err := r.materialize(ctx, junitRefs); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command[0], r.cfg.Command[1:]...) //nolint:gosec
	cmd.Dir = r.cfg.WorkDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Surefire exits nonzero on test failures. Reports present
		// means the run happened and the failures are the verdicts.
		if _, statErr := os.Stat(r.cfg.reportDir()); statErr != nil {
			return nil, fmt.Errorf("running %s: %w: %s", r.cfg.Command[0], err, truncate(string(output), 512))
		}
		r.logger.Warn("test run exited nonzero",
			zap.String("command", strings.Join(r.cfg.Command, " ")),
			zap.Error(err))
	}

	results, err := ParseReportDir(r.cfg.reportDir())
	if err != nil {
		return nil, err
	}
	r.logger.Info("parsed test reports",
		zap.Int("results", len(results)))
	return results, nil
}

// materialize copies each referenced source into src/test/java.
func (r *Runner) materialize(ctx context.Context, refs []string) error {
	dst := filepath.Join(r.cfg.WorkDir, "src", "test", "java")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating test source dir: %w", err)
	}
	for _, ref := range refs {
		content, err := r.store.Get(ctx, ref)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", ref, err)
		}
		name := filepath.Base(strings.TrimPrefix(ref, artifacts.RefScheme))
		if err := os.WriteFile(filepath.Join(dst, name), content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
