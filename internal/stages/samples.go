package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// SamplesJUnitExecutor generates sample data and JUnit sources for the
// selected test cases.
type SamplesJUnitExecutor struct {
	generator ArtifactGenerator
	logger    *zap.Logger
}

// NewSamplesJUnitExecutor creates the samples_junit stage executor.
func NewSamplesJUnitExecutor(generator ArtifactGenerator, logger *zap.Logger) *SamplesJUnitExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SamplesJUnitExecutor{generator: generator, logger: logger}
}

// Stage implements pipeline.Executor.
func (e *SamplesJUnitExecutor) Stage() pipeline.Stage {
	return pipeline.StageSamplesJUnit
}

// Execute implements pipeline.Executor.
func (e *SamplesJUnitExecutor) Execute(ctx context.Context, ex *pipeline.Exchange) (pipeline.Artifacts, error) {
	cases, err := casesForExchange(ex)
	if err != nil {
		return nil, err
	}

	out, err := e.generator.Generate(ctx, ex.RequestID, cases)
	if err != nil {
		return nil, err
	}

	e.logger.Info("generated samples and junit sources",
		zap.String("req_id", ex.RequestID),
		zap.Int("cases", len(cases)))

	return pipeline.Artifacts{
		pipeline.ArtifactSamples:   out.SampleRefs,
		pipeline.ArtifactJUnitRefs: out.JUnitRefs,
	}, nil
}
