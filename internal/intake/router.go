// Package intake routes free-text prompts. A prompt that reads like a
// requirement starts a pipeline request; anything else is answered
// directly by the model. Classification failures answer nothing and
// create no request.
package intake

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/genai"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// Mode says which path a prompt took.
type Mode string

const (
	ModeGeneral  Mode = "general"
	ModePipeline Mode = "pipeline"
)

// Result is the outcome of routing one prompt.
type Result struct {
	Mode Mode

	// Answer is the direct model reply. Set only for ModeGeneral.
	Answer string

	// Pipeline is the intake transition. Set only for ModePipeline.
	Pipeline *pipeline.AdvanceResponse
}

// Classifier labels a prompt.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (genai.Label, error)
}

// Answerer produces a direct reply.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Starter opens a pipeline request.
type Starter interface {
	Start(ctx context.Context, prompt string) (*pipeline.AdvanceResponse, error)
}

// Router is the conversational front door.
type Router struct {
	classifier Classifier
	answerer   Answerer
	starter    Starter
	logger     *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(classifier Classifier, answerer Answerer, starter Starter, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classifier: classifier,
		answerer:   answerer,
		starter:    starter,
		logger:     logger,
	}
}

// Route classifies the prompt and dispatches it.
func (r *Router) Route(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	label, err := r.classifier.Classify(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classifying prompt: %w", err)
	}

	if label == genai.LabelRequirement {
		resp, err := r.starter.Start(ctx, prompt)
		if err != nil {
			return nil, err
		}
		r.logger.Info("routed prompt to pipeline",
			zap.String("req_id", resp.ReqID))
		return &Result{Mode: ModePipeline, Pipeline: resp}, nil
	}

	answer, err := r.answerer.Answer(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("answering prompt: %w", err)
	}
	r.logger.Debug("answered prompt directly")
	return &Result{Mode: ModeGeneral, Answer: answer}, nil
}
