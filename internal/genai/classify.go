package genai

import (
	"context"
	"fmt"
	"strings"
)

// Label is the intake classification of a free-text prompt.
type Label string

const (
	// LabelRequirement marks a system/software requirement statement.
	LabelRequirement Label = "requirement"

	// LabelGeneral marks a normal question or casual conversation.
	LabelGeneral Label = "general"
)

const classifyTemplate = `You are a classifier. Classify the following user prompt strictly as either:
- requirement (if it's a system/software requirement statement, e.g. 'The pump shall...')
- general (if it's a normal question or casual conversation)

Prompt: %q

Answer with only one word: requirement or general.`

// Classifier labels prompts as requirement or general using a Completer.
type Classifier struct {
	completer Completer
}

// NewClassifier creates a classifier over the given completer.
func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify labels the prompt. Any answer that does not mention
// "requirement" is treated as general; a completion error propagates so the
// caller can report the intake as failed rather than misroute the prompt.
func (c *Classifier) Classify(ctx context.Context, prompt string) (Label, error) {
	out, err := c.completer.Complete(ctx, fmt.Sprintf(classifyTemplate, prompt))
	if err != nil {
		return "", fmt.Errorf("classify prompt: %w", err)
	}

	if strings.Contains(strings.ToLower(strings.TrimSpace(out)), "requirement") {
		return LabelRequirement, nil
	}
	return LabelGeneral, nil
}

// Answerer produces a direct answer for general prompts.
type Answerer struct {
	completer Completer
}

// NewAnswerer creates an answerer over the given completer.
func NewAnswerer(completer Completer) *Answerer {
	return &Answerer{completer: completer}
}

// Answer generates a free-text answer to the prompt.
func (a *Answerer) Answer(ctx context.Context, prompt string) (string, error) {
	out, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("answer prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}
