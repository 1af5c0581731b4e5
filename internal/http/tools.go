package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/stages"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// Tools exposes the stage collaborators directly, bypassing the
// pipeline. Useful for smoke-testing a single collaborator without
// walking a request through every stage.
type Tools struct {
	Cases     stages.CaseGenerator
	Artifacts stages.ArtifactGenerator
	Runner    stages.TestRunner
	Exporter  stages.IssueExporter
	Logger    *zap.Logger
}

func (t *Tools) register(g *echo.Group) {
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	g.POST("/testcase.generate", t.handleGenerate)
	g.POST("/iso.validate", t.handleValidate)
	g.POST("/samples.generate", t.handleArtifacts)
	g.POST("/junit.generate", t.handleArtifacts)
	g.POST("/testresults.collect", t.handleRun)
	g.POST("/jira.update", t.handleExport)
}

type generateToolRequest struct {
	ReqID       string `json:"req_id"`
	Requirement string `json:"requirement"`
}

func (t *Tools) handleGenerate(c echo.Context) error {
	if t.Cases == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "test case generation is not configured")
	}
	var req generateToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Requirement == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requirement field is required")
	}
	cases, err := t.Cases.Generate(c.Request().Context(), req.ReqID, req.Requirement)
	if err != nil {
		t.Logger.Warn("tool generate failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"testcases": cases})
}

type validateToolRequest struct {
	TestCases []testgen.TestCase `json:"testcases"`
}

func (t *Tools) handleValidate(c echo.Context) error {
	var req validateToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.TestCases) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "testcases field is required")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"iso_validation": testgen.ValidateISO(req.TestCases),
	})
}

type artifactsToolRequest struct {
	ReqID     string             `json:"req_id"`
	TestCases []testgen.TestCase `json:"testcases"`
}

func (t *Tools) handleArtifacts(c echo.Context) error {
	if t.Artifacts == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "artifact generation is not configured")
	}
	var req artifactsToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.TestCases) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "testcases field is required")
	}
	out, err := t.Artifacts.Generate(c.Request().Context(), req.ReqID, req.TestCases)
	if err != nil {
		t.Logger.Warn("tool artifacts failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"samples":             out.SampleRefs,
		"junit_artifact_refs": out.JUnitRefs,
	})
}

type runToolRequest struct {
	JUnitRefs []string `json:"junit_artifact_refs"`
}

func (t *Tools) handleRun(c echo.Context) error {
	if t.Runner == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "test execution is not configured")
	}
	var req runToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.JUnitRefs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "junit_artifact_refs field is required")
	}
	verdicts, err := t.Runner.Run(c.Request().Context(), req.JUnitRefs)
	if err != nil {
		t.Logger.Warn("tool run failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"test_results": verdicts})
}

type exportToolRequest struct {
	ReqID     string             `json:"req_id"`
	TestCases []testgen.TestCase `json:"testcases"`
}

func (t *Tools) handleExport(c echo.Context) error {
	if t.Exporter == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "jira export is not configured")
	}
	var req exportToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.TestCases) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "testcases field is required")
	}
	refs, err := t.Exporter.Export(c.Request().Context(), req.ReqID, req.TestCases, nil)
	if err != nil {
		t.Logger.Warn("tool export failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"jira_issue_refs": refs})
}
