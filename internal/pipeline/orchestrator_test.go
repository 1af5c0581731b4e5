package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubExecutor runs fn for its stage.
type stubExecutor struct {
	stage Stage
	fn    func(ctx context.Context, ex *Exchange) (Artifacts, error)
}

func (s *stubExecutor) Stage() Stage { return s.stage }

func (s *stubExecutor) Execute(ctx context.Context, ex *Exchange) (Artifacts, error) {
	return s.fn(ctx, ex)
}

// newTestOrchestrator wires an orchestrator with happy-path executors for
// every stage.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)

	o.RegisterExecutor(&stubExecutor{stage: StageRequirement, fn: func(_ context.Context, ex *Exchange) (Artifacts, error) {
		prompt, _ := ex.Artifacts.String(ArtifactPrompt)
		return Artifacts{ArtifactRequirementText: prompt}, nil
	}})
	o.RegisterExecutor(&stubExecutor{stage: StageTestCases, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		return Artifacts{
			ArtifactTestCaseIDs:   []string{"TC-1", "TC-2"},
			ArtifactTestCases:     []map[string]any{{"test_case_id": "TC-1"}, {"test_case_id": "TC-2"}},
			ArtifactISOValidation: []map[string]any{},
		}, nil
	}})
	o.RegisterExecutor(&stubExecutor{stage: StageSamplesJUnit, fn: func(_ context.Context, ex *Exchange) (Artifacts, error) {
		ids, ok := ex.Artifacts.StringSlice(ArtifactTestCaseIDs)
		if !ok {
			return nil, errors.New("test_case_ids not in exchange")
		}
		refs := make([]string, len(ids))
		for i, id := range ids {
			refs[i] = "store://junit/" + id
		}
		return Artifacts{ArtifactJUnitRefs: refs, ArtifactSamples: []string{}}, nil
	}})
	o.RegisterExecutor(&stubExecutor{stage: StageTestResults, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		return Artifacts{ArtifactTestResults: map[string]string{"TC-1": "PASS", "TC-2": "FAIL"}}, nil
	}})
	o.RegisterExecutor(&stubExecutor{stage: StageJira, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		return Artifacts{ArtifactJiraIssueRefs: []string{"KAN-11"}}, nil
	}})

	return o, store
}

// continueTo walks the pipeline up to (not including) the target stage.
func continueTo(t *testing.T, o *Orchestrator, id string, target Stage) *Request {
	t.Helper()
	ctx := context.Background()
	for {
		req, err := o.Store().Get(ctx, id)
		require.NoError(t, err)
		if req.CurrentStage == target {
			return req
		}
		_, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: req.CurrentStage, Action: ActionContinue})
		require.NoError(t, err)
	}
}

func TestStart_RunsIntakeStage(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	resp, err := o.Start(context.Background(), "The pump shall alarm within 5s of occlusion detection.")
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, resp.Status)
	assert.Equal(t, StageTestCases, resp.NextStage)
	assert.NotEmpty(t, resp.ReqID)

	req, err := o.Store().Get(context.Background(), resp.ReqID)
	require.NoError(t, err)
	text, ok := req.Artifacts.String(ArtifactRequirementText)
	require.True(t, ok)
	assert.Equal(t, "The pump shall alarm within 5s of occlusion detection.", text)
	assert.Len(t, req.History, 1)
}

func TestStart_IntakeFailureEvictsRequest(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)
	o.RegisterExecutor(&stubExecutor{stage: StageRequirement, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		return nil, errors.New("backend unavailable")
	}})

	_, err = o.Start(context.Background(), "The pump shall alarm.")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, store.Len(), "failed intake must not leave a request behind")
}

func TestAdvance_EndToEnd(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	resp, err := o.Start(ctx, "The pump shall alarm within 5s of occlusion detection.")
	require.NoError(t, err)
	id := resp.ReqID

	resp, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: StageTestCases, Action: ActionContinue})
	require.NoError(t, err)
	assert.Equal(t, StageSamplesJUnit, resp.NextStage)
	ids, ok := resp.Produced.StringSlice(ArtifactTestCaseIDs)
	require.True(t, ok)
	assert.Equal(t, []string{"TC-1", "TC-2"}, ids)

	resp, err = o.Advance(ctx, AdvanceRequest{
		ReqID:  id,
		Stage:  StageSamplesJUnit,
		Action: ActionContinue,
		Inputs: Artifacts{ArtifactTestCaseIDs: []string{"TC-1", "TC-2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StageTestResults, resp.NextStage)

	resp, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: StageTestResults, Action: ActionContinue})
	require.NoError(t, err)
	assert.Equal(t, StageJira, resp.NextStage)

	resp, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: StageJira, Action: ActionContinue})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, StageTerminal, resp.NextStage, "natural completion has no next stage")

	req, err := o.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, req.Status)
	assert.Len(t, req.History, 5)
}

func TestAdvance_StopIsTerminalAtEveryStage(t *testing.T) {
	for _, stage := range []Stage{StageTestCases, StageSamplesJUnit, StageTestResults, StageJira} {
		t.Run(string(stage), func(t *testing.T) {
			o, _ := newTestOrchestrator(t)
			ctx := context.Background()

			start, err := o.Start(ctx, "The pump shall alarm.")
			require.NoError(t, err)
			req := continueTo(t, o, start.ReqID, stage)
			before := req.Artifacts.Clone()

			resp, err := o.Advance(ctx, AdvanceRequest{ReqID: req.ID, Stage: stage, Action: ActionStop})
			require.NoError(t, err)
			assert.Equal(t, StatusStopped, resp.Status)
			assert.Equal(t, StageTerminal, resp.NextStage)

			after, err := o.Store().Get(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusStopped, after.Status)
			assert.Equal(t, before, after.Artifacts, "stop must not mutate artifacts")

			// The stopped state is absorbing.
			_, err = o.Advance(ctx, AdvanceRequest{ReqID: req.ID, Stage: stage, Action: ActionContinue})
			assert.ErrorIs(t, err, ErrRequestStopped)
			_, err = o.Advance(ctx, AdvanceRequest{ReqID: req.ID, Stage: stage, Action: ActionStop})
			assert.ErrorIs(t, err, ErrRequestStopped)
		})
	}
}

func TestAdvance_CompleteIsAbsorbing(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	start, err := o.Start(ctx, "The pump shall alarm.")
	require.NoError(t, err)
	id := start.ReqID
	for _, stage := range []Stage{StageTestCases, StageSamplesJUnit, StageTestResults, StageJira} {
		_, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: stage, Action: ActionContinue})
		require.NoError(t, err)
	}

	_, err = o.Advance(ctx, AdvanceRequest{ReqID: id, Stage: StageJira, Action: ActionContinue})
	assert.ErrorIs(t, err, ErrRequestComplete)
}

func TestAdvance_StageMismatchMutatesNothing(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	start, err := o.Start(ctx, "The pump shall alarm.")
	require.NoError(t, err)
	before, err := o.Store().Get(ctx, start.ReqID)
	require.NoError(t, err)

	_, err = o.Advance(ctx, AdvanceRequest{ReqID: start.ReqID, Stage: StageJira, Action: ActionContinue})
	var mismatch *StageMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, StageJira, mismatch.Declared)
	assert.Equal(t, StageTestCases, mismatch.Current)

	after, err := o.Store().Get(ctx, start.ReqID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected precondition must cause no state mutation")
}

func TestAdvance_MissingRequiredArtifact(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)

	// A request parked at samples_junit with no stored test_case_ids.
	req := NewRequest(StageSamplesJUnit)
	require.NoError(t, store.Create(context.Background(), req))

	_, err = o.Advance(context.Background(), AdvanceRequest{
		ReqID:  req.ID,
		Stage:  StageSamplesJUnit,
		Action: ActionContinue,
	})
	var missing *MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ArtifactTestCaseIDs, missing.Key)

	after, err := store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StageSamplesJUnit, after.CurrentStage)
	assert.Equal(t, StatusInProgress, after.Status)
	require.Len(t, after.History, 1)
	assert.Contains(t, after.History[0].Note, "requires artifact")
}

func TestAdvance_MissingArtifactSatisfiedByInputs(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	req := NewRequest(StageSamplesJUnit)
	require.NoError(t, o.Store().Create(ctx, req))

	resp, err := o.Advance(ctx, AdvanceRequest{
		ReqID:  req.ID,
		Stage:  StageSamplesJUnit,
		Action: ActionContinue,
		Inputs: Artifacts{ArtifactTestCaseIDs: []any{"TC-1", "TC-2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StageTestResults, resp.NextStage)
}

func TestAdvance_CollaboratorFailureIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)

	calls := 0
	o.RegisterExecutor(&stubExecutor{stage: StageTestCases, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		calls++
		return nil, errors.New("model endpoint unreachable")
	}})

	req := NewRequest(StageTestCases)
	req.Artifacts[ArtifactRequirementText] = "The pump shall alarm."
	require.NoError(t, store.Create(context.Background(), req))

	snapshot := func() *Request {
		r, err := store.Get(context.Background(), req.ID)
		require.NoError(t, err)
		r.History = nil
		r.UpdatedAt = time.Time{}
		return r
	}

	baseline := snapshot()
	for i := 0; i < 2; i++ {
		_, err = o.Advance(context.Background(), AdvanceRequest{ReqID: req.ID, Stage: StageTestCases, Action: ActionContinue})
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
		assert.Equal(t, baseline, snapshot(), "failed executor call %d must leave the request unchanged", i+1)
	}
	assert.Equal(t, 2, calls)

	// Still resumable: both failures are on record.
	r, err := store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Len(t, r.History, 2)
}

func TestAdvance_TimeoutIsStageLevelFailure(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(&Config{StageTimeout: 10 * time.Millisecond}, store, zap.NewNop())
	require.NoError(t, err)

	o.RegisterExecutor(&stubExecutor{stage: StageTestCases, fn: func(ctx context.Context, _ *Exchange) (Artifacts, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	req := NewRequest(StageTestCases)
	req.Artifacts[ArtifactRequirementText] = "The pump shall alarm."
	require.NoError(t, store.Create(context.Background(), req))

	_, err = o.Advance(context.Background(), AdvanceRequest{ReqID: req.ID, Stage: StageTestCases, Action: ActionContinue})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	after, err := store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StageTestCases, after.CurrentStage)
	assert.Empty(t, after.Artifacts[ArtifactTestCaseIDs], "no partial artifacts from a timed-out call")
}

func TestAdvance_RejectsUndeclaredProducedArtifact(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)

	o.RegisterExecutor(&stubExecutor{stage: StageTestCases, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		return Artifacts{ArtifactJiraIssueRefs: []string{"KAN-1"}}, nil
	}})

	req := NewRequest(StageTestCases)
	req.Artifacts[ArtifactRequirementText] = "The pump shall alarm."
	require.NoError(t, store.Create(context.Background(), req))

	_, err = o.Advance(context.Background(), AdvanceRequest{ReqID: req.ID, Stage: StageTestCases, Action: ActionContinue})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "undeclared artifact")

	after, err := store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StageTestCases, after.CurrentStage)
	assert.False(t, after.Artifacts.Has(ArtifactJiraIssueRefs))
}

func TestAdvance_UnknownRequest(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Advance(context.Background(), AdvanceRequest{ReqID: "REQ-DEADBEEF", Stage: StageTestCases, Action: ActionContinue})
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestAdvance_InvalidAction(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	start, err := o.Start(ctx, "The pump shall alarm.")
	require.NoError(t, err)

	_, err = o.Advance(ctx, AdvanceRequest{ReqID: start.ReqID, Stage: StageTestCases, Action: "pause"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	req, err := o.Store().Get(ctx, start.ReqID)
	require.NoError(t, err)
	assert.Len(t, req.History, 1, "invalid action must not append history")
}

func TestAdvance_ConcurrentCallSameRequestRejected(t *testing.T) {
	store := NewMemoryStore()
	o, err := NewOrchestrator(nil, store, zap.NewNop())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	o.RegisterExecutor(&stubExecutor{stage: StageTestCases, fn: func(_ context.Context, _ *Exchange) (Artifacts, error) {
		close(entered)
		<-release
		return Artifacts{
			ArtifactTestCaseIDs:   []string{"TC-1"},
			ArtifactTestCases:     []map[string]any{},
			ArtifactISOValidation: []map[string]any{},
		}, nil
	}})

	req := NewRequest(StageTestCases)
	req.Artifacts[ArtifactRequirementText] = "The pump shall alarm."
	require.NoError(t, store.Create(context.Background(), req))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = o.Advance(context.Background(), AdvanceRequest{ReqID: req.ID, Stage: StageTestCases, Action: ActionContinue})
	}()

	<-entered
	_, err = o.Advance(context.Background(), AdvanceRequest{ReqID: req.ID, Stage: StageTestCases, Action: ActionContinue})
	assert.ErrorIs(t, err, ErrRequestBusy)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
}

func TestAdvance_IndependentRequestsDoNotInterfere(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	a, err := o.Start(ctx, "The pump shall alarm.")
	require.NoError(t, err)
	b, err := o.Start(ctx, "The pump shall log every dose.")
	require.NoError(t, err)

	_, err = o.Advance(ctx, AdvanceRequest{ReqID: a.ReqID, Stage: StageTestCases, Action: ActionStop})
	require.NoError(t, err)

	resp, err := o.Advance(ctx, AdvanceRequest{ReqID: b.ReqID, Stage: StageTestCases, Action: ActionContinue})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, resp.Status)
}
