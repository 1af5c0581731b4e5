package testgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	out string
	err error
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	return f.out, f.err
}

const validCompletion = `[
  {"test_case_id": "TC-1", "title": "Occlusion alarm latency", "description": "Alarm within 5s", "steps": ["Induce occlusion"], "expected_results": ["Alarm within 5s"]},
  {"test_case_id": "TC-2", "title": "Alarm persistence", "description": "Alarm stays until cleared", "steps": ["Induce occlusion", "Wait"], "expected_results": ["Alarm persists"]}
]`

func TestGenerator_ParsesModelOutput(t *testing.T) {
	g := NewGenerator(&fakeCompleter{out: validCompletion}, nil)

	cases, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm within 5s of occlusion detection.")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, []string{"TC-1", "TC-2"}, IDs(cases))
	assert.Equal(t, "REQ-1", cases[0].ReqID)
	assert.Equal(t, "Occlusion alarm latency", cases[0].Title)
}

func TestGenerator_StripsMarkdownFences(t *testing.T) {
	g := NewGenerator(&fakeCompleter{out: "```json\n" + validCompletion + "\n```"}, nil)

	cases, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm.")
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestGenerator_SingleObjectCompletion(t *testing.T) {
	g := NewGenerator(&fakeCompleter{out: `{"test_case_id": "TC-9", "title": "t", "description": "d", "steps": ["s"], "expected_results": ["e"]}`}, nil)

	cases, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm.")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "TC-9", cases[0].TestCaseID)
}

func TestGenerator_FallbackOnMalformedOutput(t *testing.T) {
	for _, out := range []string{"not json at all", "[]", "{}", ""} {
		g := NewGenerator(&fakeCompleter{out: out}, nil)

		cases, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm.")
		require.NoError(t, err, "malformed output %q must degrade, not fail", out)
		require.Len(t, cases, 1)
		assert.Regexp(t, `^TC-[0-9A-F]{6}$`, cases[0].TestCaseID)
		assert.Equal(t, "Auto-generated test case for REQ-1", cases[0].Title)
		assert.Equal(t, "The pump shall alarm.", cases[0].Description)
		assert.NotEmpty(t, cases[0].Steps)
		assert.NotEmpty(t, cases[0].ExpectedResults)
	}
}

func TestGenerator_CompleterErrorPropagates(t *testing.T) {
	g := NewGenerator(&fakeCompleter{err: errors.New("endpoint down")}, nil)

	_, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate test cases")
}

func TestGenerator_AssignsMissingIDs(t *testing.T) {
	g := NewGenerator(&fakeCompleter{out: `[{"title": "t", "description": "d", "steps": ["s"], "expected_results": ["e"]}]`}, nil)

	cases, err := g.Generate(context.Background(), "REQ-1", "The pump shall alarm.")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Regexp(t, `^TC-[0-9A-F]{6}$`, cases[0].TestCaseID)
}

func TestValidateISO(t *testing.T) {
	cases := []TestCase{
		{TestCaseID: "TC-1", Description: "d", Steps: []string{"s"}, ExpectedResults: []string{"e"}},
		{TestCaseID: "TC-2", Description: "d", Steps: []string{"s"}},
		{TestCaseID: "TC-3"},
	}

	results := ValidateISO(cases)
	require.Len(t, results, 3)

	assert.True(t, results[0].Compliant)
	assert.Empty(t, results[0].MissingElements)
	assert.Equal(t, "Looks good.", results[0].Suggestions)

	assert.False(t, results[1].Compliant)
	assert.Equal(t, []string{"Acceptance criteria not detailed"}, results[1].MissingElements)
	assert.Equal(t, "Add precise acceptance criteria.", results[1].Suggestions)

	assert.False(t, results[2].Compliant)
	assert.Len(t, results[2].MissingElements, 3)

	for _, r := range results {
		assert.Regexp(t, `^VAL-[0-9A-F]{8}$`, r.ValidationID)
		assert.Equal(t, relatedISORefs, r.RelatedISORefs)
	}
}
