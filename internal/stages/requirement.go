package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// RequirementExecutor captures the user's prompt as the requirement
// under test and records it.
type RequirementExecutor struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewRequirementExecutor creates the requirement stage executor.
func NewRequirementExecutor(recorder Recorder, logger *zap.Logger) *RequirementExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequirementExecutor{recorder: recorder, logger: logger}
}

// Stage implements pipeline.Executor.
func (e *RequirementExecutor) Stage() pipeline.Stage {
	return pipeline.StageRequirement
}

// Execute implements pipeline.Executor.
func (e *RequirementExecutor) Execute(ctx context.Context, ex *pipeline.Exchange) (pipeline.Artifacts, error) {
	prompt, _ := ex.Artifacts.String(pipeline.ArtifactPrompt)
	text := strings.TrimSpace(prompt)
	if text == "" {
		return nil, fmt.Errorf("request %s has an empty prompt", ex.RequestID)
	}
	if e.recorder != nil {
		if err := e.recorder.RecordRequirement(ctx, ex.RequestID, text); err != nil {
			return nil, err
		}
	}
	e.logger.Info("captured requirement",
		zap.String("req_id", ex.RequestID),
		zap.Int("chars", len(text)))
	return pipeline.Artifacts{
		pipeline.ArtifactRequirementText: text,
	}, nil
}
