package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// TestResultsExecutor runs the generated JUnit sources and collects
// their verdicts.
type TestResultsExecutor struct {
	runner   TestRunner
	recorder Recorder
	logger   *zap.Logger
}

// NewTestResultsExecutor creates the test_results stage executor.
func NewTestResultsExecutor(runner TestRunner, recorder Recorder, logger *zap.Logger) *TestResultsExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestResultsExecutor{runner: runner, recorder: recorder, logger: logger}
}

// Stage implements pipeline.Executor.
func (e *TestResultsExecutor) Stage() pipeline.Stage {
	return pipeline.StageTestResults
}

// Execute implements pipeline.Executor.
func (e *TestResultsExecutor) Execute(ctx context.Context, ex *pipeline.Exchange) (pipeline.Artifacts, error) {
	refs, _ := ex.Artifacts.StringSlice(pipeline.ArtifactJUnitRefs)
	if len(refs) == 0 {
		return nil, fmt.Errorf("request %s has no junit sources to run", ex.RequestID)
	}

	verdicts, err := e.runner.Run(ctx, refs)
	if err != nil {
		return nil, err
	}

	if e.recorder != nil {
		if err := e.recorder.RecordResults(ctx, ex.RequestID, verdicts); err != nil {
			return nil, err
		}
	}

	e.logger.Info("collected test results",
		zap.String("req_id", ex.RequestID),
		zap.Int("verdicts", len(verdicts)))

	return pipeline.Artifacts{
		pipeline.ArtifactTestResults: verdicts,
	}, nil
}
