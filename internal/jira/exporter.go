package jira

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/results"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// API is the Jira surface the exporter depends on.
type API interface {
	SearchBySummary(ctx context.Context, text string) ([]Issue, error)
	CreateIssue(ctx context.Context, summary, description string) (string, error)
	AddComment(ctx context.Context, key, comment string) error
}

// Exporter pushes test cases and their run verdicts to Jira.
type Exporter struct {
	api    API
	logger *zap.Logger
}

// NewExporter creates an Exporter.
func NewExporter(api API, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{api: api, logger: logger}
}

// IssueRef records the Jira issue tied to one test case.
type IssueRef struct {
	TestCaseID string `json:"test_case_id"`
	IssueKey   string `json:"issue_key"`
	Created    bool   `json:"created"`
}

// Export upserts one issue per test case. An existing issue whose
// summary carries the test case ID gets a run comment, otherwise a new
// issue is created with the case description and verdict.
func (e *Exporter) Export(ctx context.Context, reqID string, cases []testgen.TestCase, verdicts []results.Result) ([]IssueRef, error) {
	byCase := make(map[string]results.Result, len(verdicts))
	for _, v := range verdicts {
		byCase[v.TestCaseID] = v
	}

	refs := make([]IssueRef, 0, len(cases))
	for _, tc := range cases {
		ref, err := e.export(ctx, reqID, tc, byCase[tc.TestCaseID])
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (e *Exporter) export(ctx context.Context, reqID string, tc testgen.TestCase, verdict results.Result) (IssueRef, error) {
	existing, err := e.api.SearchBySummary(ctx, tc.TestCaseID)
	if err != nil {
		return IssueRef{}, fmt.Errorf("test case %s: %w", tc.TestCaseID, err)
	}

	if len(existing) > 0 {
		key := existing[0].Key
		if err := e.api.AddComment(ctx, key, runComment(reqID, verdict)); err != nil {
			return IssueRef{}, fmt.Errorf("test case %s: %w", tc.TestCaseID, err)
		}
		e.logger.Info("commented existing jira issue",
			zap.String("test_case_id", tc.TestCaseID),
			zap.String("issue_key", key))
		return IssueRef{TestCaseID: tc.TestCaseID, IssueKey: key}, nil
	}

	key, err := e.api.CreateIssue(ctx, issueSummary(tc), issueDescription(reqID, tc, verdict))
	if err != nil {
		return IssueRef{}, fmt.Errorf("test case %s: %w", tc.TestCaseID, err)
	}
	e.logger.Info("created jira issue",
		zap.String("test_case_id", tc.TestCaseID),
		zap.String("issue_key", key))
	return IssueRef{TestCaseID: tc.TestCaseID, IssueKey: key, Created: true}, nil
}

func issueSummary(tc testgen.TestCase) string {
	title := tc.Title
	if title == "" {
		title = "Generated test case"
	}
	return fmt.Sprintf("[%s] %s", tc.TestCaseID, title)
}

func issueDescription(reqID string, tc testgen.TestCase, verdict results.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\n", reqID)
	if tc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", tc.Description)
	}
	if len(tc.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, step := range tc.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}
	if len(tc.ExpectedResults) > 0 {
		b.WriteString("Expected results:\n")
		for _, exp := range tc.ExpectedResults {
			fmt.Fprintf(&b, "- %s\n", exp)
		}
		b.WriteString("\n")
	}
	b.WriteString(runComment(reqID, verdict))
	return b.String()
}

func runComment(reqID string, verdict results.Result) string {
	status := verdict.Status
	if status == "" {
		status = "NOT_RUN"
	}
	comment := fmt.Sprintf("Latest run (%s): %s", reqID, status)
	if verdict.Message != "" {
		comment += " - " + verdict.Message
	}
	return comment
}
