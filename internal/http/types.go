// Package http provides the HTTP API for tcgd.
package http

import (
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// ManagerRequest is the request body for POST /manager.
type ManagerRequest struct {
	Prompt string `json:"prompt"`
}

// ManagerResponse is the response body for POST /manager.
type ManagerResponse struct {
	Mode      string `json:"mode"`
	Answer    string `json:"answer,omitempty"`
	ReqID     string `json:"req_id,omitempty"`
	Status    string `json:"status,omitempty"`
	NextStage string `json:"next_stage,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StartRequest is the request body for POST /pipeline/start.
type StartRequest struct {
	Prompt string `json:"prompt"`
}

// ContinueRequest is the request body for POST /pipeline/continue.
type ContinueRequest struct {
	Stage       string   `json:"stage"`
	ReqID       string   `json:"req_id"`
	UserAction  string   `json:"user_action"`
	TestCaseIDs []string `json:"test_case_ids,omitempty"`
}

// TransitionResponse is the response body for pipeline transitions.
// Produced artifacts marshal as top-level siblings of the fixed fields,
// so a testcases transition reads {req_id, status, next_stage, message,
// test_case_ids, testcases, iso_validation}.
type TransitionResponse struct {
	ReqID     string             `json:"req_id"`
	Status    string             `json:"status"`
	NextStage string             `json:"next_stage,omitempty"`
	Message   string             `json:"message"`
	Artifacts pipeline.Artifacts `json:"-"`
}

// MarshalJSON flattens Artifacts into the response body.
func (r TransitionResponse) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Artifacts)+4)
	for k, v := range r.Artifacts {
		body[string(k)] = v
	}
	body["req_id"] = r.ReqID
	body["status"] = r.Status
	if r.NextStage != "" {
		body["next_stage"] = r.NextStage
	}
	body["message"] = r.Message
	return json.Marshal(body)
}

// HistoryEntryView is one transition record in a request view.
type HistoryEntryView struct {
	Stage  string    `json:"stage"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// RequestView is the response body for GET /requests/:id.
type RequestView struct {
	ReqID        string             `json:"req_id"`
	CurrentStage string             `json:"current_stage,omitempty"`
	Status       string             `json:"status"`
	Artifacts    []string           `json:"artifact_keys"`
	History      []HistoryEntryView `json:"history"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error body for every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
