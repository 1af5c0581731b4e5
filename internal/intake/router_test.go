package intake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/genai"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

type fakeClassifier struct {
	label genai.Label
	err   error
}

func (f *fakeClassifier) Classify(context.Context, string) (genai.Label, error) {
	return f.label, f.err
}

type fakeAnswerer struct {
	answer string
	err    error
	called bool
}

func (f *fakeAnswerer) Answer(context.Context, string) (string, error) {
	f.called = true
	return f.answer, f.err
}

type fakeStarter struct {
	resp   *pipeline.AdvanceResponse
	err    error
	called bool
}

func (f *fakeStarter) Start(context.Context, string) (*pipeline.AdvanceResponse, error) {
	f.called = true
	return f.resp, f.err
}

func TestRouteGeneralPrompt(t *testing.T) {
	answerer := &fakeAnswerer{answer: "hello there"}
	starter := &fakeStarter{}
	router := NewRouter(&fakeClassifier{label: genai.LabelGeneral}, answerer, starter, zap.NewNop())

	result, err := router.Route(context.Background(), "how are you?")
	require.NoError(t, err)
	assert.Equal(t, ModeGeneral, result.Mode)
	assert.Equal(t, "hello there", result.Answer)
	assert.Nil(t, result.Pipeline)
	assert.False(t, starter.called)
}

func TestRouteRequirementPrompt(t *testing.T) {
	answerer := &fakeAnswerer{}
	starter := &fakeStarter{resp: &pipeline.AdvanceResponse{
		ReqID:     "REQ-AB12CD34",
		Status:    pipeline.StatusInProgress,
		NextStage: pipeline.StageTestCases,
	}}
	router := NewRouter(&fakeClassifier{label: genai.LabelRequirement}, answerer, starter, zap.NewNop())

	result, err := router.Route(context.Background(), "The pump shall log bolus delivery")
	require.NoError(t, err)
	assert.Equal(t, ModePipeline, result.Mode)
	require.NotNil(t, result.Pipeline)
	assert.Equal(t, "REQ-AB12CD34", result.Pipeline.ReqID)
	assert.False(t, answerer.called)
}

func TestRouteClassifierFailureCreatesNothing(t *testing.T) {
	starter := &fakeStarter{}
	answerer := &fakeAnswerer{}
	router := NewRouter(&fakeClassifier{err: assert.AnError}, answerer, starter, zap.NewNop())

	_, err := router.Route(context.Background(), "whatever")
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, starter.called)
	assert.False(t, answerer.called)
}

func TestRouteStartFailurePropagates(t *testing.T) {
	starter := &fakeStarter{err: assert.AnError}
	router := NewRouter(&fakeClassifier{label: genai.LabelRequirement}, &fakeAnswerer{}, starter, zap.NewNop())

	_, err := router.Route(context.Background(), "The pump shall log bolus delivery")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRouteEmptyPrompt(t *testing.T) {
	router := NewRouter(&fakeClassifier{}, &fakeAnswerer{}, &fakeStarter{}, zap.NewNop())
	_, err := router.Route(context.Background(), "   ")
	assert.Error(t, err)
}
