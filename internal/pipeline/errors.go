package pipeline

import (
	"errors"
	"fmt"
)

// Caller errors. These reject the call and leave the Request untouched.
var (
	ErrUnknownRequest  = errors.New("unknown request")
	ErrInvalidAction   = errors.New("invalid user action")
	ErrRequestStopped  = errors.New("request is stopped")
	ErrRequestComplete = errors.New("request is complete")
	ErrRequestBusy     = errors.New("request already has an advance in flight")
	ErrRequestExists   = errors.New("request already exists")
)

// StageMismatchError rejects an Advance whose declared stage does not match
// the Request's current stage. A caller retrying a stale stage is rejected,
// not redirected.
type StageMismatchError struct {
	Declared Stage
	Current  Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("stage mismatch: request is at stage %q, not %q", e.Current, e.Declared)
}

// MissingArtifactError rejects a continue whose required input artifact is
// neither stored on the Request nor supplied by the caller.
type MissingArtifactError struct {
	Stage Stage
	Key   ArtifactKey
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("stage %q requires artifact %q", e.Stage, e.Key)
}

// CollaboratorError reports a failed or malformed external collaborator
// call. The Request stays IN_PROGRESS at the same stage so the caller may
// retry the continue.
type CollaboratorError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("stage %q: %s failed: %v", e.Stage, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err leaves the Request resumable at the same
// stage, i.e. whether re-issuing the continue is a sensible caller decision.
func IsRetryable(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
