package http

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/intake"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// handleManager routes a free-text prompt: requirements start a
// pipeline request, everything else gets a direct answer.
func (s *Server) handleManager(c echo.Context) error {
	var req ManagerRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid manager request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}

	result, err := s.router.Route(c.Request().Context(), req.Prompt)
	if err != nil {
		s.logger.Warn(c.Request().Context(), "manager routing failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ManagerResponse{
			Mode:    "failed",
			Message: err.Error(),
		})
	}

	if result.Mode == intake.ModeGeneral {
		return c.JSON(http.StatusOK, ManagerResponse{
			Mode:   string(intake.ModeGeneral),
			Answer: result.Answer,
		})
	}

	pl := result.Pipeline
	return c.JSON(http.StatusOK, ManagerResponse{
		Mode:      string(intake.ModePipeline),
		ReqID:     pl.ReqID,
		Status:    string(pl.Status),
		NextStage: string(pl.NextStage),
		Message:   pl.Message,
	})
}

// handleStart opens a pipeline request directly, skipping intake
// classification.
func (s *Server) handleStart(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}

	resp, err := s.pipeline.Start(c.Request().Context(), req.Prompt)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transition(resp))
}

// handleContinue advances one stage with an explicit user decision.
func (s *Server) handleContinue(c echo.Context) error {
	var req ContinueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ReqID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "req_id field is required")
	}
	if req.Stage == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "stage field is required")
	}

	ar := pipeline.AdvanceRequest{
		ReqID:  req.ReqID,
		Stage:  pipeline.Stage(req.Stage),
		Action: pipeline.UserAction(req.UserAction),
	}
	if len(req.TestCaseIDs) > 0 {
		ar.Inputs = pipeline.Artifacts{
			pipeline.ArtifactTestCaseIDs: req.TestCaseIDs,
		}
	}

	resp, err := s.pipeline.Advance(c.Request().Context(), ar)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transition(resp))
}

// handleRequest returns a read-only view of one request.
func (s *Server) handleRequest(c echo.Context) error {
	req, err := s.requests.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	view := RequestView{
		ReqID:        req.ID,
		CurrentStage: string(req.CurrentStage),
		Status:       string(req.Status),
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
	}
	for key := range req.Artifacts {
		view.Artifacts = append(view.Artifacts, string(key))
	}
	sort.Strings(view.Artifacts)
	for _, h := range req.History {
		view.History = append(view.History, HistoryEntryView{
			Stage:  string(h.Stage),
			Action: string(h.Action),
			At:     h.At,
			Note:   h.Note,
		})
	}
	return c.JSON(http.StatusOK, view)
}

func transition(resp *pipeline.AdvanceResponse) TransitionResponse {
	return TransitionResponse{
		ReqID:     resp.ReqID,
		Status:    string(resp.Status),
		NextStage: string(resp.NextStage),
		Message:   resp.Message,
		Artifacts: resp.Produced,
	}
}
