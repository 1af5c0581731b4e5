package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/tcgd/internal/pipeline"

// Exchange is what an Executor receives: the request identity and the merged
// artifact set (stored artifacts overlaid with caller-supplied inputs).
type Exchange struct {
	RequestID string
	Stage     Stage
	Artifacts Artifacts
}

// Executor performs the work of a single stage by calling its external
// collaborator and returning the artifacts the stage produces.
type Executor interface {
	// Stage returns the stage this executor serves.
	Stage() Stage

	// Execute runs the stage. Returned artifact keys must match the
	// stage definition's declared Produces set. Any error is treated as
	// a stage-level failure: the Request is left unchanged and resumable.
	Execute(ctx context.Context, ex *Exchange) (Artifacts, error)
}

// AdvanceRequest is one stage-continuation call.
type AdvanceRequest struct {
	ReqID  string
	Stage  Stage
	Action UserAction

	// Inputs are caller-supplied artifacts (e.g. test_case_ids re-sent by
	// an interactive front end). They overlay the stored artifact bag for
	// required-input validation and executor invocation, and are not
	// persisted unless a stage produces them.
	Inputs Artifacts
}

// AdvanceResponse is the unified response contract for every transition.
type AdvanceResponse struct {
	ReqID     string    `json:"req_id"`
	Status    Status    `json:"status"`
	NextStage Stage     `json:"next_stage,omitempty"`
	Message   string    `json:"message"`
	Produced  Artifacts `json:"-"`
}

// Config configures the orchestrator.
type Config struct {
	// StageTimeout bounds a single executor invocation. A timed-out call
	// is a stage-level failure; no partial artifacts are merged. Zero
	// disables the bound.
	StageTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{StageTimeout: 120 * time.Second}
}

// Orchestrator drives Requests through the stage registry, one explicit
// human decision at a time.
type Orchestrator struct {
	config    *Config
	store     Store
	registry  *Registry
	executors map[Stage]Executor
	logger    *zap.Logger

	// Telemetry
	tracer         trace.Tracer
	meter          metric.Meter
	advanceCounter metric.Int64Counter
	stageDur       metric.Float64Histogram

	// inflight serializes Advance calls per request ID. A second
	// concurrent call for the same ID is rejected, never interleaved.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(cfg *Config, store Store, logger *zap.Logger) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if store == nil {
		return nil, errors.New("request store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		config:    cfg,
		store:     store,
		registry:  NewRegistry(),
		executors: make(map[Stage]Executor),
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		inflight:  make(map[string]struct{}),
	}
	o.initMetrics()
	return o, nil
}

func (o *Orchestrator) initMetrics() {
	var err error

	o.advanceCounter, err = o.meter.Int64Counter(
		"tcgd.pipeline.advances_total",
		metric.WithDescription("Total advance calls labeled by stage, action and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		o.logger.Warn("failed to create advance counter", zap.Error(err))
	}

	o.stageDur, err = o.meter.Float64Histogram(
		"tcgd.pipeline.stage_duration_seconds",
		metric.WithDescription("Stage executor duration in seconds, labeled by stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		o.logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}
}

// RegisterExecutor registers the executor for its stage.
func (o *Orchestrator) RegisterExecutor(exec Executor) {
	o.executors[exec.Stage()] = exec
}

// Registry exposes the stage registry for read-only inspection.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Store exposes the request store for read-only inspection.
func (o *Orchestrator) Store() Store {
	return o.store
}

// Start creates a new Request and runs the intake stage with the given
// prompt. If the intake stage fails the Request is evicted so callers never
// observe a partially-initialized run.
func (o *Orchestrator) Start(ctx context.Context, prompt string) (*AdvanceResponse, error) {
	req := NewRequest(o.registry.First())
	if err := o.store.Create(ctx, req); err != nil {
		return nil, err
	}

	resp, err := o.Advance(ctx, AdvanceRequest{
		ReqID:  req.ID,
		Stage:  req.CurrentStage,
		Action: ActionContinue,
		Inputs: Artifacts{ArtifactPrompt: prompt},
	})
	if err != nil {
		_ = o.store.Delete(ctx, req.ID)
		return nil, err
	}
	return resp, nil
}

// Advance applies one human decision to a Request.
//
// Preconditions: the Request must exist, must not be in an absorbing state,
// the declared stage must equal its current stage, and the action must be
// continue or stop. Precondition rejections mutate nothing, history
// included. Transitions that get past the preconditions (stop, continue,
// and a continue that fails in validation or execution) append exactly one
// history record.
func (o *Orchestrator) Advance(ctx context.Context, ar AdvanceRequest) (*AdvanceResponse, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.advance", trace.WithAttributes(
		attribute.String("req_id", ar.ReqID),
		attribute.String("stage", string(ar.Stage)),
		attribute.String("action", string(ar.Action)),
	))
	defer span.End()

	resp, err := o.advance(ctx, ar)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if IsRetryable(err) {
			outcome = "collaborator_failure"
		}
		span.SetStatus(codes.Error, err.Error())
	}
	if o.advanceCounter != nil {
		o.advanceCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(ar.Stage)),
			attribute.String("action", string(ar.Action)),
			attribute.String("outcome", outcome),
		))
	}
	return resp, err
}

func (o *Orchestrator) advance(ctx context.Context, ar AdvanceRequest) (*AdvanceResponse, error) {
	if !ValidAction(ar.Action) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, ar.Action)
	}

	if !o.begin(ar.ReqID) {
		return nil, ErrRequestBusy
	}
	defer o.end(ar.ReqID)

	cur, err := o.store.Get(ctx, ar.ReqID)
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case StatusStopped:
		return nil, ErrRequestStopped
	case StatusComplete:
		return nil, ErrRequestComplete
	}
	if cur.CurrentStage != ar.Stage {
		return nil, &StageMismatchError{Declared: ar.Stage, Current: cur.CurrentStage}
	}

	if ar.Action == ActionStop {
		return o.stop(ctx, ar)
	}
	return o.runStage(ctx, ar, cur)
}

// stop marks the Request STOPPED without invoking any executor or touching
// its artifacts. The transition is terminal.
func (o *Orchestrator) stop(ctx context.Context, ar AdvanceRequest) (*AdvanceResponse, error) {
	_, err := o.store.Update(ctx, ar.ReqID, func(req *Request) error {
		req.Status = StatusStopped
		req.UpdatedAt = time.Now().UTC()
		req.History = append(req.History, HistoryEntry{
			Stage:  ar.Stage,
			Action: ActionStop,
			At:     req.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("pipeline stopped",
		zap.String("req_id", ar.ReqID),
		zap.String("stage", string(ar.Stage)),
	)
	return &AdvanceResponse{
		ReqID:   ar.ReqID,
		Status:  StatusStopped,
		Message: fmt.Sprintf("pipeline stopped at stage %q", ar.Stage),
	}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, ar AdvanceRequest, cur *Request) (*AdvanceResponse, error) {
	def, ok := o.registry.Lookup(ar.Stage)
	if !ok {
		return nil, &StageMismatchError{Declared: ar.Stage, Current: cur.CurrentStage}
	}

	merged := cur.Artifacts.Clone().Merge(ar.Inputs)
	for _, key := range def.Requires {
		if !merged.Has(key) {
			err := &MissingArtifactError{Stage: ar.Stage, Key: key}
			o.recordAttempt(ctx, ar, err)
			return nil, err
		}
	}

	exec, ok := o.executors[ar.Stage]
	if !ok {
		return nil, fmt.Errorf("no executor registered for stage %q", ar.Stage)
	}

	// The executor call is the only suspension point. No store lock is
	// held here; the inflight guard alone serializes this request.
	execCtx := ctx
	if o.config.StageTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, o.config.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	produced, err := exec.Execute(execCtx, &Exchange{
		RequestID: ar.ReqID,
		Stage:     ar.Stage,
		Artifacts: merged,
	})
	if o.stageDur != nil {
		o.stageDur.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("stage", string(ar.Stage))))
	}
	if err != nil {
		cerr := asCollaboratorError(ar.Stage, err)
		o.recordAttempt(ctx, ar, cerr)
		o.logger.Warn("stage executor failed",
			zap.String("req_id", ar.ReqID),
			zap.String("stage", string(ar.Stage)),
			zap.Error(err),
		)
		return nil, cerr
	}

	for key := range produced {
		if !def.produces(key) {
			cerr := &CollaboratorError{
				Stage: ar.Stage,
				Op:    "artifact validation",
				Err:   fmt.Errorf("undeclared artifact %q", key),
			}
			o.recordAttempt(ctx, ar, cerr)
			return nil, cerr
		}
	}

	status := StatusInProgress
	if def.Terminal() {
		status = StatusComplete
	}

	updated, err := o.store.Update(ctx, ar.ReqID, func(req *Request) error {
		if req.CurrentStage != ar.Stage || req.Status != StatusInProgress {
			// The inflight guard makes this unreachable; kept as a
			// commit-time invariant check.
			return &StageMismatchError{Declared: ar.Stage, Current: req.CurrentStage}
		}
		req.Artifacts.Merge(produced)
		req.CurrentStage = def.Successor
		req.Status = status
		req.UpdatedAt = time.Now().UTC()
		req.History = append(req.History, HistoryEntry{
			Stage:  ar.Stage,
			Action: ActionContinue,
			At:     req.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &AdvanceResponse{
		ReqID:    ar.ReqID,
		Status:   updated.Status,
		Produced: produced,
	}
	if def.Terminal() {
		resp.Message = "pipeline complete"
	} else {
		resp.NextStage = def.Successor
		resp.Message = fmt.Sprintf("stage %q complete; awaiting decision for stage %q", ar.Stage, def.Successor)
	}

	o.logger.Info("stage complete",
		zap.String("req_id", ar.ReqID),
		zap.String("stage", string(ar.Stage)),
		zap.String("status", string(updated.Status)),
		zap.String("next_stage", string(resp.NextStage)),
	)
	return resp, nil
}

// recordAttempt appends the history record for a continue that got past the
// preconditions but did not advance the stage. Stage, artifacts and status
// are deliberately untouched.
func (o *Orchestrator) recordAttempt(ctx context.Context, ar AdvanceRequest, cause error) {
	_, err := o.store.Update(ctx, ar.ReqID, func(req *Request) error {
		req.History = append(req.History, HistoryEntry{
			Stage:  ar.Stage,
			Action: ar.Action,
			At:     time.Now().UTC(),
			Note:   cause.Error(),
		})
		return nil
	})
	if err != nil {
		o.logger.Warn("failed to record attempt history", zap.String("req_id", ar.ReqID), zap.Error(err))
	}
}

func (o *Orchestrator) begin(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) end(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

func (d Definition) produces(key ArtifactKey) bool {
	for _, k := range d.Produces {
		if k == key {
			return true
		}
	}
	return false
}

func asCollaboratorError(stage Stage, err error) *CollaboratorError {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce
	}
	op := "execute"
	if errors.Is(err, context.DeadlineExceeded) {
		op = "execute (timeout)"
	}
	return &CollaboratorError{Stage: stage, Op: op, Err: err}
}
