package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/artifacts"
	"github.com/fyrsmithlabs/tcgd/internal/jira"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
	"github.com/fyrsmithlabs/tcgd/internal/results"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

type fakeRecorder struct {
	requirements map[string]string
	cases        []testgen.TestCase
	findings     []testgen.ISOResult
	verdicts     map[string][]results.Result
	err          error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		requirements: make(map[string]string),
		verdicts:     make(map[string][]results.Result),
	}
}

func (f *fakeRecorder) RecordRequirement(_ context.Context, reqID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.requirements[reqID] = text
	return nil
}

func (f *fakeRecorder) RecordTestCases(_ context.Context, cases []testgen.TestCase) error {
	if f.err != nil {
		return f.err
	}
	f.cases = append(f.cases, cases...)
	return nil
}

func (f *fakeRecorder) RecordISOValidations(_ context.Context, findings []testgen.ISOResult) error {
	if f.err != nil {
		return f.err
	}
	f.findings = append(f.findings, findings...)
	return nil
}

func (f *fakeRecorder) RecordResults(_ context.Context, reqID string, verdicts []results.Result) error {
	if f.err != nil {
		return f.err
	}
	f.verdicts[reqID] = append(f.verdicts[reqID], verdicts...)
	return nil
}

func (f *fakeRecorder) TestCasesForRequest(_ context.Context, reqID string) ([]testgen.TestCase, error) {
	return f.cases, f.err
}

func exchange(stage pipeline.Stage, arts pipeline.Artifacts) *pipeline.Exchange {
	return &pipeline.Exchange{RequestID: "REQ-AB12CD34", Stage: stage, Artifacts: arts}
}

func TestRequirementExecutor(t *testing.T) {
	recorder := newFakeRecorder()
	exec := NewRequirementExecutor(recorder, zap.NewNop())
	assert.Equal(t, pipeline.StageRequirement, exec.Stage())

	produced, err := exec.Execute(context.Background(), exchange(pipeline.StageRequirement, pipeline.Artifacts{
		pipeline.ArtifactPrompt: "  The pump shall log bolus delivery  ",
	}))
	require.NoError(t, err)
	text, ok := produced.String(pipeline.ArtifactRequirementText)
	require.True(t, ok)
	assert.Equal(t, "The pump shall log bolus delivery", text)
	assert.Equal(t, "The pump shall log bolus delivery", recorder.requirements["REQ-AB12CD34"])
}

func TestRequirementExecutorEmptyPrompt(t *testing.T) {
	exec := NewRequirementExecutor(nil, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageRequirement, pipeline.Artifacts{
		pipeline.ArtifactPrompt: "   ",
	}))
	assert.Error(t, err)
}

func TestRequirementExecutorRecorderFailure(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.err = assert.AnError
	exec := NewRequirementExecutor(recorder, zap.NewNop())

	_, err := exec.Execute(context.Background(), exchange(pipeline.StageRequirement, pipeline.Artifacts{
		pipeline.ArtifactPrompt: "req",
	}))
	assert.ErrorIs(t, err, assert.AnError)
}

type fakeCaseGenerator struct {
	cases []testgen.TestCase
	err   error
}

func (f *fakeCaseGenerator) Generate(_ context.Context, reqID, _ string) ([]testgen.TestCase, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]testgen.TestCase, len(f.cases))
	copy(out, f.cases)
	for i := range out {
		out[i].ReqID = reqID
	}
	return out, nil
}

func TestTestCasesExecutor(t *testing.T) {
	recorder := newFakeRecorder()
	gen := &fakeCaseGenerator{cases: []testgen.TestCase{
		{TestCaseID: "TC-1", Title: "t1", Steps: []string{"s"}, ExpectedResults: []string{"e"}, Description: "d"},
		{TestCaseID: "TC-2", Title: "t2"},
	}}
	exec := NewTestCasesExecutor(gen, recorder, zap.NewNop())
	assert.Equal(t, pipeline.StageTestCases, exec.Stage())

	produced, err := exec.Execute(context.Background(), exchange(pipeline.StageTestCases, pipeline.Artifacts{
		pipeline.ArtifactRequirementText: "req",
	}))
	require.NoError(t, err)

	ids, ok := produced.StringSlice(pipeline.ArtifactTestCaseIDs)
	require.True(t, ok)
	assert.Equal(t, []string{"TC-1", "TC-2"}, ids)
	cases := produced[pipeline.ArtifactTestCases].([]testgen.TestCase)
	require.Len(t, cases, 2)
	findings := produced[pipeline.ArtifactISOValidation].([]testgen.ISOResult)
	require.Len(t, findings, 2)
	assert.True(t, findings[0].Compliant)
	assert.False(t, findings[1].Compliant)

	assert.Len(t, recorder.cases, 2)
	assert.Len(t, recorder.findings, 2)
}

func TestTestCasesExecutorMissingRequirement(t *testing.T) {
	exec := NewTestCasesExecutor(&fakeCaseGenerator{}, nil, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageTestCases, pipeline.Artifacts{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no requirement text")
}

func TestTestCasesExecutorGeneratorFailure(t *testing.T) {
	exec := NewTestCasesExecutor(&fakeCaseGenerator{err: assert.AnError}, nil, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageTestCases, pipeline.Artifacts{
		pipeline.ArtifactRequirementText: "req",
	}))
	assert.ErrorIs(t, err, assert.AnError)
}

type fakeArtifactGenerator struct {
	got []testgen.TestCase
	err error
}

func (f *fakeArtifactGenerator) Generate(_ context.Context, _ string, cases []testgen.TestCase) (*artifacts.Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = cases
	out := &artifacts.Output{}
	for _, tc := range cases {
		out.SampleRefs = append(out.SampleRefs, "store://samples/"+tc.TestCaseID+".json")
		out.JUnitRefs = append(out.JUnitRefs, "store://junit/"+artifacts.ClassName(tc.TestCaseID)+".java")
	}
	return out, nil
}

func storedCases() []testgen.TestCase {
	return []testgen.TestCase{
		{ReqID: "REQ-AB12CD34", TestCaseID: "TC-1", Title: "t1"},
		{ReqID: "REQ-AB12CD34", TestCaseID: "TC-2", Title: "t2"},
	}
}

func TestSamplesJUnitExecutorSelectsCases(t *testing.T) {
	gen := &fakeArtifactGenerator{}
	exec := NewSamplesJUnitExecutor(gen, zap.NewNop())
	assert.Equal(t, pipeline.StageSamplesJUnit, exec.Stage())

	produced, err := exec.Execute(context.Background(), exchange(pipeline.StageSamplesJUnit, pipeline.Artifacts{
		pipeline.ArtifactTestCases:   storedCases(),
		pipeline.ArtifactTestCaseIDs: []string{"TC-2"},
	}))
	require.NoError(t, err)

	require.Len(t, gen.got, 1)
	assert.Equal(t, "TC-2", gen.got[0].TestCaseID)
	junitRefs, ok := produced.StringSlice(pipeline.ArtifactJUnitRefs)
	require.True(t, ok)
	assert.Equal(t, []string{"store://junit/TC_2Test.java"}, junitRefs)
	sampleRefs, ok := produced.StringSlice(pipeline.ArtifactSamples)
	require.True(t, ok)
	assert.Equal(t, []string{"store://samples/TC-2.json"}, sampleRefs)
}

func TestSamplesJUnitExecutorDecodesJSONCases(t *testing.T) {
	// Artifacts that crossed an HTTP boundary come back as generic maps.
	gen := &fakeArtifactGenerator{}
	exec := NewSamplesJUnitExecutor(gen, zap.NewNop())

	jsonCases := []any{
		map[string]any{"test_case_id": "TC-1", "title": "t1"},
	}
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageSamplesJUnit, pipeline.Artifacts{
		pipeline.ArtifactTestCases:   jsonCases,
		pipeline.ArtifactTestCaseIDs: []any{"TC-1"},
	}))
	require.NoError(t, err)
	require.Len(t, gen.got, 1)
	assert.Equal(t, "TC-1", gen.got[0].TestCaseID)
}

func TestSamplesJUnitExecutorNoMatch(t *testing.T) {
	exec := NewSamplesJUnitExecutor(&fakeArtifactGenerator{}, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageSamplesJUnit, pipeline.Artifacts{
		pipeline.ArtifactTestCases:   storedCases(),
		pipeline.ArtifactTestCaseIDs: []string{"TC-404"},
	}))
	assert.Error(t, err)
}

type fakeRunner struct {
	got      []string
	verdicts []results.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, refs []string) ([]results.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = refs
	return f.verdicts, nil
}

func TestTestResultsExecutor(t *testing.T) {
	recorder := newFakeRecorder()
	runner := &fakeRunner{verdicts: []results.Result{
		{TestCaseID: "TC-1", Status: results.StatusPass},
	}}
	exec := NewTestResultsExecutor(runner, recorder, zap.NewNop())
	assert.Equal(t, pipeline.StageTestResults, exec.Stage())

	produced, err := exec.Execute(context.Background(), exchange(pipeline.StageTestResults, pipeline.Artifacts{
		pipeline.ArtifactJUnitRefs: []string{"store://junit/TC_1Test.java"},
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"store://junit/TC_1Test.java"}, runner.got)
	verdicts := produced[pipeline.ArtifactTestResults].([]results.Result)
	require.Len(t, verdicts, 1)
	assert.Len(t, recorder.verdicts["REQ-AB12CD34"], 1)
}

func TestTestResultsExecutorNoSources(t *testing.T) {
	exec := NewTestResultsExecutor(&fakeRunner{}, nil, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageTestResults, pipeline.Artifacts{}))
	assert.Error(t, err)
}

type fakeExporter struct {
	gotCases    []testgen.TestCase
	gotVerdicts []results.Result
	err         error
}

func (f *fakeExporter) Export(_ context.Context, _ string, cases []testgen.TestCase, verdicts []results.Result) ([]jira.IssueRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotCases = cases
	f.gotVerdicts = verdicts
	refs := make([]jira.IssueRef, len(cases))
	for i, tc := range cases {
		refs[i] = jira.IssueRef{TestCaseID: tc.TestCaseID, IssueKey: "QA-1", Created: true}
	}
	return refs, nil
}

func TestJiraExecutor(t *testing.T) {
	exporter := &fakeExporter{}
	exec := NewJiraExecutor(exporter, zap.NewNop())
	assert.Equal(t, pipeline.StageJira, exec.Stage())

	produced, err := exec.Execute(context.Background(), exchange(pipeline.StageJira, pipeline.Artifacts{
		pipeline.ArtifactTestCases:   storedCases(),
		pipeline.ArtifactTestCaseIDs: []string{"TC-1", "TC-2"},
		pipeline.ArtifactTestResults: []results.Result{
			{TestCaseID: "TC-1", Status: results.StatusPass},
		},
	}))
	require.NoError(t, err)

	require.Len(t, exporter.gotCases, 2)
	require.Len(t, exporter.gotVerdicts, 1)
	refs := produced[pipeline.ArtifactJiraIssueRefs].([]jira.IssueRef)
	require.Len(t, refs, 2)
	assert.Equal(t, "QA-1", refs[0].IssueKey)
}

func TestJiraExecutorMissingResults(t *testing.T) {
	exec := NewJiraExecutor(&fakeExporter{}, zap.NewNop())
	_, err := exec.Execute(context.Background(), exchange(pipeline.StageJira, pipeline.Artifacts{
		pipeline.ArtifactTestCases:   storedCases(),
		pipeline.ArtifactTestCaseIDs: []string{"TC-1"},
	}))
	assert.Error(t, err)
}

func TestSelectCases(t *testing.T) {
	cases := storedCases()
	assert.Len(t, selectCases(cases, nil), 2)
	selected := selectCases(cases, []string{"TC-2"})
	require.Len(t, selected, 1)
	assert.Equal(t, "TC-2", selected[0].TestCaseID)
	assert.Empty(t, selectCases(cases, []string{"TC-404"}))
}
