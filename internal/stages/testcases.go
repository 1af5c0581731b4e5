package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// TestCasesExecutor generates test cases from the captured requirement
// and validates them against the ISO checklist.
type TestCasesExecutor struct {
	generator CaseGenerator
	recorder  Recorder
	logger    *zap.Logger
}

// NewTestCasesExecutor creates the testcases stage executor.
func NewTestCasesExecutor(generator CaseGenerator, recorder Recorder, logger *zap.Logger) *TestCasesExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestCasesExecutor{generator: generator, recorder: recorder, logger: logger}
}

// Stage implements pipeline.Executor.
func (e *TestCasesExecutor) Stage() pipeline.Stage {
	return pipeline.StageTestCases
}

// Execute implements pipeline.Executor.
func (e *TestCasesExecutor) Execute(ctx context.Context, ex *pipeline.Exchange) (pipeline.Artifacts, error) {
	requirement, ok := ex.Artifacts.String(pipeline.ArtifactRequirementText)
	if !ok || requirement == "" {
		return nil, fmt.Errorf("request %s has no requirement text", ex.RequestID)
	}
	cases, err := e.generator.Generate(ctx, ex.RequestID, requirement)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("request %s: generator returned no test cases", ex.RequestID)
	}

	findings := testgen.ValidateISO(cases)

	if e.recorder != nil {
		if err := e.recorder.RecordTestCases(ctx, cases); err != nil {
			return nil, err
		}
		if err := e.recorder.RecordISOValidations(ctx, findings); err != nil {
			return nil, err
		}
	}

	e.logger.Info("generated test cases",
		zap.String("req_id", ex.RequestID),
		zap.Int("count", len(cases)))

	return pipeline.Artifacts{
		pipeline.ArtifactTestCaseIDs:   testgen.IDs(cases),
		pipeline.ArtifactTestCases:     cases,
		pipeline.ArtifactISOValidation: findings,
	}, nil
}
