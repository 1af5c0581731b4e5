package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	// StageRequirement captures the requirement text at intake.
	StageRequirement Stage = "requirement"

	// StageTestCases generates test cases from the requirement.
	StageTestCases Stage = "testcases"

	// StageSamplesJUnit generates sample data and JUnit sources.
	StageSamplesJUnit Stage = "samples_junit"

	// StageTestResults collects execution results from test reports.
	StageTestResults Stage = "test_results"

	// StageJira exports test cases and results to the issue tracker.
	StageJira Stage = "jira"

	// StageTerminal marks the end of the pipeline. It is never a
	// Request's current stage; a Request past the last stage is COMPLETE.
	StageTerminal Stage = ""
)

// Status tracks the overall lifecycle of a Request.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusStopped    Status = "STOPPED"
	StatusComplete   Status = "COMPLETE"
)

// UserAction is the explicit human decision applied by an Advance call.
type UserAction string

const (
	ActionContinue UserAction = "continue"
	ActionStop     UserAction = "stop"
)

// ValidAction reports whether a is a recognized user action.
func ValidAction(a UserAction) bool {
	return a == ActionContinue || a == ActionStop
}

// ArtifactKey names a piece of data produced by one stage and consumed by a
// later one. Keys are stable wire names.
type ArtifactKey string

const (
	ArtifactPrompt          ArtifactKey = "prompt"
	ArtifactRequirementText ArtifactKey = "requirement_text"
	ArtifactTestCaseIDs     ArtifactKey = "test_case_ids"
	ArtifactTestCases       ArtifactKey = "testcases"
	ArtifactISOValidation   ArtifactKey = "iso_validation"
	ArtifactSamples         ArtifactKey = "samples"
	ArtifactJUnitRefs       ArtifactKey = "junit_artifact_refs"
	ArtifactTestResults     ArtifactKey = "test_results"
	ArtifactJiraIssueRefs   ArtifactKey = "jira_issue_refs"
)

// Artifacts is the accumulated artifact bag of a Request. Values are
// stage-specific payloads; keys are validated against the Registry at the
// orchestrator boundary.
type Artifacts map[ArtifactKey]any

// Clone returns a shallow copy of the bag. Values are treated as immutable
// once stored.
func (a Artifacts) Clone() Artifacts {
	out := make(Artifacts, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into the bag, overwriting existing keys.
func (a Artifacts) Merge(other Artifacts) Artifacts {
	for k, v := range other {
		a[k] = v
	}
	return a
}

// Has reports whether key is present with a non-nil value.
func (a Artifacts) Has(key ArtifactKey) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns the value for key if it is a string.
func (a Artifacts) String(key ArtifactKey) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// StringSlice returns the value for key as a string slice. JSON-decoded
// input arrives as []any; both representations are accepted.
func (a Artifacts) StringSlice(key ArtifactKey) ([]string, bool) {
	switch v := a[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// HistoryEntry records one human decision applied to a Request.
type HistoryEntry struct {
	Stage  Stage      `json:"stage"`
	Action UserAction `json:"user_action"`
	At     time.Time  `json:"timestamp"`
	Note   string     `json:"note,omitempty"`
}

// Request is one end-to-end pipeline run.
type Request struct {
	ID           string         `json:"req_id"`
	CurrentStage Stage          `json:"current_stage"`
	Status       Status         `json:"status"`
	Artifacts    Artifacts      `json:"artifacts"`
	History      []HistoryEntry `json:"history"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewRequest creates a Request positioned at the given first stage.
func NewRequest(first Stage) *Request {
	now := time.Now().UTC()
	return &Request{
		ID:           NewRequestID(),
		CurrentStage: first,
		Status:       StatusInProgress,
		Artifacts:    make(Artifacts),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the Request is in an absorbing state.
func (r *Request) Terminal() bool {
	return r.Status == StatusStopped || r.Status == StatusComplete
}

// clone returns a deep-enough copy for handing across the store boundary.
func (r *Request) clone() *Request {
	out := *r
	out.Artifacts = r.Artifacts.Clone()
	out.History = append([]HistoryEntry(nil), r.History...)
	return &out
}

// NewRequestID generates an opaque requirement identifier, e.g. REQ-3F60B2A1.
func NewRequestID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REQ-" + strings.ToUpper(hex[:8])
}
