package testgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Completer generates a free-text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TestCase is one generated test case.
type TestCase struct {
	ReqID           string   `json:"req_id,omitempty"`
	TestCaseID      string   `json:"test_case_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Steps           []string `json:"steps"`
	ExpectedResults []string `json:"expected_results"`
}

const generateTemplate = `Requirement ID: %s
Requirement: %s
Task: Generate 2-3 JSON test cases with fields:
test_case_id, title, description, steps, expected_results.
Respond with a JSON array only.`

// Generator turns requirement text into test cases via a Completer.
type Generator struct {
	completer Completer
	logger    *zap.Logger
}

// NewGenerator creates a test case generator.
func NewGenerator(completer Completer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{completer: completer, logger: logger}
}

// Generate produces test cases for the requirement. A model call failure is
// an error; a malformed completion is not — it degrades to a single
// auto-generated case so the pipeline stays actionable.
func (g *Generator) Generate(ctx context.Context, reqID, requirement string) ([]TestCase, error) {
	out, err := g.completer.Complete(ctx, fmt.Sprintf(generateTemplate, reqID, requirement))
	if err != nil {
		return nil, fmt.Errorf("generate test cases: %w", err)
	}

	cases, perr := parseTestCases(out)
	if perr != nil {
		g.logger.Warn("unparseable test case completion, using fallback",
			zap.String("req_id", reqID),
			zap.Error(perr),
		)
		cases = []TestCase{fallbackTestCase(reqID, requirement)}
	}

	for i := range cases {
		cases[i].ReqID = reqID
		if cases[i].TestCaseID == "" {
			cases[i].TestCaseID = NewTestCaseID()
		}
	}
	return cases, nil
}

// parseTestCases decodes a model completion into test cases. Models often
// wrap JSON in markdown fences; those are stripped first.
func parseTestCases(out string) ([]TestCase, error) {
	trimmed := stripFences(out)

	var cases []TestCase
	if err := json.Unmarshal([]byte(trimmed), &cases); err != nil {
		// Some models return a single object instead of an array.
		var single TestCase
		if serr := json.Unmarshal([]byte(trimmed), &single); serr == nil && single.TestCaseID != "" {
			return []TestCase{single}, nil
		}
		return nil, fmt.Errorf("decoding test cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("completion contained no test cases")
	}
	return cases, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// fallbackTestCase is the deterministic case used when the model output is
// unusable.
func fallbackTestCase(reqID, requirement string) TestCase {
	return TestCase{
		TestCaseID:  NewTestCaseID(),
		Title:       fmt.Sprintf("Auto-generated test case for %s", reqID),
		Description: requirement,
		Steps: []string{
			fmt.Sprintf("Interpret requirement: %s", requirement),
			"Validate system behavior matches requirement",
		},
		ExpectedResults: []string{
			fmt.Sprintf("System satisfies: %s", requirement),
		},
	}
}

// NewTestCaseID generates an opaque test case identifier, e.g. TC-A41F09.
func NewTestCaseID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TC-" + strings.ToUpper(hex[:6])
}

// IDs returns the identifiers of the given cases, in order.
func IDs(cases []TestCase) []string {
	out := make([]string, len(cases))
	for i, tc := range cases {
		out[i] = tc.TestCaseID
	}
	return out
}
