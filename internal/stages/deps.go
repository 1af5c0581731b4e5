package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/tcgd/internal/artifacts"
	"github.com/fyrsmithlabs/tcgd/internal/jira"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
	"github.com/fyrsmithlabs/tcgd/internal/results"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// CaseGenerator produces test cases from requirement text.
type CaseGenerator interface {
	Generate(ctx context.Context, reqID, requirement string) ([]testgen.TestCase, error)
}

// ArtifactGenerator produces samples and JUnit sources for test cases.
type ArtifactGenerator interface {
	Generate(ctx context.Context, reqID string, cases []testgen.TestCase) (*artifacts.Output, error)
}

// TestRunner executes generated JUnit sources.
type TestRunner interface {
	Run(ctx context.Context, junitRefs []string) ([]results.Result, error)
}

// IssueExporter pushes test cases and verdicts to the tracker.
type IssueExporter interface {
	Export(ctx context.Context, reqID string, cases []testgen.TestCase, verdicts []results.Result) ([]jira.IssueRef, error)
}

// Recorder is the QA database surface the executors write to. A nil
// Recorder disables persistence.
type Recorder interface {
	RecordRequirement(ctx context.Context, reqID, text string) error
	RecordTestCases(ctx context.Context, cases []testgen.TestCase) error
	RecordISOValidations(ctx context.Context, findings []testgen.ISOResult) error
	RecordResults(ctx context.Context, reqID string, verdicts []results.Result) error
	TestCasesForRequest(ctx context.Context, reqID string) ([]testgen.TestCase, error)
}

// decodeArtifact converts a stored artifact value to a concrete type.
// Values produced in-process keep their Go type; values that crossed a
// JSON boundary come back as generic maps and slices, so fall back to
// a round-trip decode.
func decodeArtifact[T any](v any) (T, error) {
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encoding artifact: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding artifact: %w", err)
	}
	return out, nil
}

// selectCases filters cases to the given IDs, keeping input order of
// the cases. Empty ids selects everything.
func selectCases(cases []testgen.TestCase, ids []string) []testgen.TestCase {
	if len(ids) == 0 {
		return cases
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	selected := make([]testgen.TestCase, 0, len(cases))
	for _, tc := range cases {
		if wanted[tc.TestCaseID] {
			selected = append(selected, tc)
		}
	}
	return selected
}

// casesForExchange resolves the working test case set for a stage: the
// stored testcases artifact filtered down to the caller's selection.
func casesForExchange(ex *pipeline.Exchange) ([]testgen.TestCase, error) {
	raw, ok := ex.Artifacts[pipeline.ArtifactTestCases]
	if !ok {
		return nil, fmt.Errorf("request %s has no stored test cases", ex.RequestID)
	}
	cases, err := decodeArtifact[[]testgen.TestCase](raw)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", ex.RequestID, err)
	}
	ids, _ := ex.Artifacts.StringSlice(pipeline.ArtifactTestCaseIDs)
	selected := selectCases(cases, ids)
	if len(selected) == 0 {
		return nil, fmt.Errorf("request %s: no test cases match selection %v", ex.RequestID, ids)
	}
	return selected, nil
}
