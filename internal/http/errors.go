package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// statusForError maps pipeline errors onto HTTP status codes.
func statusForError(err error) int {
	var (
		mismatch *pipeline.StageMismatchError
		missing  *pipeline.MissingArtifactError
		collab   *pipeline.CollaboratorError
	)
	switch {
	case errors.Is(err, pipeline.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrRequestBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrRequestStopped), errors.Is(err, pipeline.ErrRequestComplete):
		return http.StatusConflict
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &collab):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a pipeline error as JSON.
func writeError(c echo.Context, err error) error {
	return c.JSON(statusForError(err), ErrorResponse{
		Error:     err.Error(),
		Retryable: pipeline.IsRetryable(err),
	})
}
