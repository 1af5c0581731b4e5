package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
	"github.com/fyrsmithlabs/tcgd/internal/results"
)

// JiraExecutor exports the selected test cases and their verdicts to
// the issue tracker.
type JiraExecutor struct {
	exporter IssueExporter
	logger   *zap.Logger
}

// NewJiraExecutor creates the jira stage executor.
func NewJiraExecutor(exporter IssueExporter, logger *zap.Logger) *JiraExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JiraExecutor{exporter: exporter, logger: logger}
}

// Stage implements pipeline.Executor.
func (e *JiraExecutor) Stage() pipeline.Stage {
	return pipeline.StageJira
}

// Execute implements pipeline.Executor.
func (e *JiraExecutor) Execute(ctx context.Context, ex *pipeline.Exchange) (pipeline.Artifacts, error) {
	cases, err := casesForExchange(ex)
	if err != nil {
		return nil, err
	}

	raw, ok := ex.Artifacts[pipeline.ArtifactTestResults]
	if !ok {
		return nil, fmt.Errorf("request %s has no test results to export", ex.RequestID)
	}
	verdicts, err := decodeArtifact[[]results.Result](raw)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", ex.RequestID, err)
	}

	issueRefs, err := e.exporter.Export(ctx, ex.RequestID, cases, verdicts)
	if err != nil {
		return nil, err
	}

	e.logger.Info("exported to jira",
		zap.String("req_id", ex.RequestID),
		zap.Int("issues", len(issueRefs)))

	return pipeline.Artifacts{
		pipeline.ArtifactJiraIssueRefs: issueRefs,
	}, nil
}
