package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/fyrsmithlabs/draftd/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type memStateStore struct {
	states map[string]ProjectState
	failOn string
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: make(map[string]ProjectState)}
}

func (m *memStateStore) Save(projectID string, state *ProjectState) error {
	if m.failOn != "" && m.failOn == projectID {
		return errors.New("disk full")
	}
	m.states[projectID] = *state
	return nil
}

func (m *memStateStore) Load(projectID string) (*ProjectState, error) {
	state, ok := m.states[projectID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return &state, nil
}

type savedArtifact struct {
	title   string
	content string
	tags    map[string]string
}

type memArtifactStore struct {
	artifacts map[string]savedArtifact
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{artifacts: make(map[string]savedArtifact)}
}

func (m *memArtifactStore) key(projectID, name string) string {
	return projectID + "/" + name
}

func (m *memArtifactStore) SaveArtifact(projectID, name, title, content string, tags map[string]string) error {
	m.artifacts[m.key(projectID, name)] = savedArtifact{title: title, content: content, tags: tags}
	return nil
}

func (m *memArtifactStore) LoadArtifact(projectID, name string) (string, map[string]string, error) {
	a, ok := m.artifacts[m.key(projectID, name)]
	if !ok {
		return "", map[string]string{}, nil
	}
	return a.content, a.tags, nil
}

// scriptedCompleter returns canned responses keyed by call order and records
// every prompt it received.
type scriptedCompleter struct {
	responses []string
	errs      []error
	calls     [][]provider.Message
}

func (s *scriptedCompleter) Do(ctx context.Context, client provider.Client, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error) {
	i := len(s.calls)
	s.calls = append(s.calls, messages)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	content := fmt.Sprintf("response %d", i)
	if i < len(s.responses) {
		content = s.responses[i]
	}
	return &provider.CompletionResponse{
		Content:      content,
		Model:        "test-model",
		Provider:     client.Name(),
		FinishReason: "stop",
	}, nil
}

type stubClient struct{ name string }

func (c stubClient) Name() string      { return c.name }
func (c stubClient) Models() []string  { return []string{"test-model"} }
func (c stubClient) IsAvailable() bool { return true }
func (c stubClient) Complete(ctx context.Context, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error) {
	return nil, errors.New("not used in orchestrator tests")
}

type recordingCheckpointer struct {
	messages []string
	err      error
}

func (r *recordingCheckpointer) Commit(ctx context.Context, projectID, message string) error {
	r.messages = append(r.messages, message)
	return r.err
}

type testHarness struct {
	cfg         *config.Config
	log         *logging.TestLogger
	states      *memStateStore
	artifacts   *memArtifactStore
	completer   *scriptedCompleter
	checkpoints *recordingCheckpointer
	orch        *Orchestrator
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		cfg:         config.NewDefaultConfig(),
		log:         logging.NewTestLogger(),
		states:      newMemStateStore(),
		artifacts:   newMemArtifactStore(),
		completer:   &scriptedCompleter{},
		checkpoints: &recordingCheckpointer{},
	}
	opts = append([]Option{WithCheckpointer(h.checkpoints)}, opts...)
	h.orch = NewOrchestrator(h.cfg, h.log.Logger, h.states, h.artifacts, stubClient{name: "anthropic"}, h.completer, opts...)
	return h
}

func TestOrchestrator_FullWalkToDone(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{
		"concept: write about tidepools",
		"outline: 1. intro 2. biology 3. conclusion",
		"draft: tidepools are small worlds...",
		"Thorough and well structured.\nVERDICT: PASS",
	}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "draft-"))

	ctx := context.Background()
	for i, want := range []Stage{StagePlanning, StageDev, StageQA, StageDone} {
		result := h.orch.Step(ctx)
		require.True(t, result.Success, "step %d: %s", i, result.Error)
		assert.Equal(t, want, h.orch.State().Stage)
	}

	state := h.orch.State()
	assert.Equal(t, 1, state.Iteration.Ideation)
	assert.Equal(t, 1, state.Iteration.Planning)
	assert.Equal(t, 1, state.Iteration.Dev)
	assert.Equal(t, 1, state.Iteration.QA)
	require.NotNil(t, state.Quality)
	assert.True(t, state.Quality.Passed)

	// Every productive stage left a numbered artifact behind.
	for _, stage := range ProductiveStages() {
		content, tags, err := h.artifacts.LoadArtifact(id, artifactName(stage, 1))
		require.NoError(t, err)
		assert.NotEmpty(t, content, "artifact for %s", stage)
		assert.Equal(t, string(stage), tags["stage"])
		assert.Equal(t, "anthropic", tags["provider"])
	}
}

func TestOrchestrator_FeederArtifactThreadedIntoPrompt(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{"the tidepool concept brief"}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	require.True(t, h.orch.Step(context.Background()).Success)
	require.True(t, h.orch.Step(context.Background()).Success)

	require.Len(t, h.completer.calls, 2)
	planning := h.completer.calls[1]
	require.Len(t, planning, 2)
	assert.Equal(t, provider.RoleUser, planning[1].Role)
	assert.Contains(t, planning[1].Content, "the tidepool concept brief")
}

func TestOrchestrator_QAFailLoopsBackToDev(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{
		"concept",
		"outline",
		"first draft",
		"The conclusion is missing.\nVERDICT: FAIL",
		"second draft",
		"Much better now.\nVERDICT: PASS",
	}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.True(t, h.orch.Step(ctx).Success)
	}

	state := h.orch.State()
	assert.Equal(t, StageDev, state.Stage)
	require.NotNil(t, state.Quality)
	assert.False(t, state.Quality.Passed)
	assert.Contains(t, state.Quality.Summary, "conclusion is missing")

	// The rewrite prompt carries the review feedback.
	require.True(t, h.orch.Step(ctx).Success)
	rewrite := h.completer.calls[4]
	assert.Contains(t, rewrite[1].Content, "conclusion is missing")

	require.True(t, h.orch.Step(ctx).Success)
	state = h.orch.State()
	assert.Equal(t, StageDone, state.Stage)
	assert.True(t, state.Quality.Passed)
	assert.Equal(t, 2, state.Iteration.Dev)
	assert.Equal(t, 2, state.Iteration.QA)

	_, _, err = h.artifacts.LoadArtifact(id, artifactName(StageDev, 2))
	require.NoError(t, err)
}

func TestOrchestrator_QALoopLimitFinishesWithFailingQuality(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxQALoops = 2
	h.completer.responses = []string{
		"concept", "outline",
		"draft one", "Still rough.\nVERDICT: FAIL",
		"draft two", "Still rough.\nVERDICT: FAIL",
	}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.True(t, h.orch.Step(ctx).Success)
	}

	state := h.orch.State()
	assert.Equal(t, StageDone, state.Stage)
	require.NotNil(t, state.Quality)
	assert.False(t, state.Quality.Passed)
	assert.Equal(t, 2, state.Iteration.QA)
	h.log.AssertLogged(t, zapcore.WarnLevel, "qa loop limit reached")
}

func TestOrchestrator_ProviderFailurePausesAndPersists(t *testing.T) {
	h := newHarness(t)
	cause := &provider.QuotaExhaustedError{
		ProviderError: provider.ProviderError{Provider: "anthropic", Model: "claude-3-5-sonnet-latest", Message: "credit balance too low"},
		QuotaType:     provider.QuotaBilling,
	}
	h.completer.errs = []error{cause}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)

	result := h.orch.Step(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "pipeline paused")
	assert.Contains(t, result.Error, "credit balance too low")

	state := h.orch.State()
	assert.Equal(t, StagePausedQuota, state.Stage)
	assert.Equal(t, StageIdeation, state.PausedFrom)
	assert.NotEmpty(t, state.PauseReason)
	assert.Equal(t, 0, state.Iteration.Ideation, "failed work must not count")

	// The pause survived to durable storage.
	persisted, err := h.states.Load(id)
	require.NoError(t, err)
	assert.Equal(t, StagePausedQuota, persisted.Stage)
	assert.Equal(t, state.PauseReason, persisted.PauseReason)
}

func TestOrchestrator_PausedStepRefusesWithoutDispatch(t *testing.T) {
	h := newHarness(t)
	h.completer.errs = []error{errors.New("rate limited")}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.False(t, h.orch.Step(context.Background()).Success)
	dispatched := len(h.completer.calls)

	result := h.orch.Step(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "paused")
	assert.Len(t, h.completer.calls, dispatched, "paused step must not reach the provider")
}

func TestOrchestrator_ResumeRetriesInterruptedStage(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{"concept", "", "outline"}
	h.completer.errs = []error{nil, errors.New("overloaded")}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, h.orch.Step(ctx).Success)
	require.False(t, h.orch.Step(ctx).Success)
	require.Equal(t, StagePausedQuota, h.orch.State().Stage)

	require.NoError(t, h.orch.Resume())
	state := h.orch.State()
	assert.Equal(t, StagePlanning, state.Stage)
	assert.Empty(t, state.PauseReason)
	assert.Empty(t, state.PausedFrom)

	// The interrupted planning step runs again rather than being skipped.
	result := h.orch.Step(ctx)
	require.True(t, result.Success)
	assert.Equal(t, StageDev, h.orch.State().Stage)
	assert.Equal(t, 1, h.orch.State().Iteration.Planning)
}

func TestOrchestrator_ResumeWhenNotPaused(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	err = h.orch.Resume()
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestOrchestrator_ContextCancellationDoesNotPause(t *testing.T) {
	h := newHarness(t)
	h.completer.errs = []error{fmt.Errorf("completion aborted: %w", context.Canceled)}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	result := h.orch.Step(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "interrupted")
	assert.Equal(t, StageIdeation, h.orch.State().Stage, "cancellation must not pause the pipeline")
}

func TestOrchestrator_DoneStepIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.InitProject("")
	require.NoError(t, err)
	h.orch.State().Stage = StageDone

	for i := 0; i < 3; i++ {
		result := h.orch.Step(context.Background())
		assert.True(t, result.Success)
		assert.Contains(t, result.Message, "complete")
	}
	assert.Empty(t, h.completer.calls)
}

func TestOrchestrator_StepWithoutProject(t *testing.T) {
	h := newHarness(t)
	result := h.orch.Step(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no project initialized")
}

func TestOrchestrator_ScrubAppliedBeforePersist(t *testing.T) {
	scrub := func(s string) string {
		return strings.ReplaceAll(s, "sk-secret", "[REDACTED]")
	}
	h := newHarness(t, WithScrubFunc(scrub))
	h.completer.responses = []string{"concept uses key sk-secret for the api"}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.True(t, h.orch.Step(context.Background()).Success)

	content, _, err := h.artifacts.LoadArtifact(id, artifactName(StageIdeation, 1))
	require.NoError(t, err)
	assert.NotContains(t, content, "sk-secret")
	assert.Contains(t, content, "[REDACTED]")
}

func TestOrchestrator_CheckpointCommitMessage(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{"concept"}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.True(t, h.orch.Step(context.Background()).Success)

	require.Len(t, h.checkpoints.messages, 1)
	assert.Equal(t, "draftd: ideation iteration 1", h.checkpoints.messages[0])
}

func TestOrchestrator_CheckpointFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.checkpoints.err = errors.New("not a git repository")
	h.completer.responses = []string{"concept"}

	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	result := h.orch.Step(context.Background())
	assert.True(t, result.Success)
	h.log.AssertLogged(t, zapcore.WarnLevel, "checkpoint commit failed")
}

func TestOrchestrator_StatusShape(t *testing.T) {
	h := newHarness(t)

	status := h.orch.Status()
	assert.Nil(t, status["projectId"])
	flags := status["flags"].(map[string]bool)
	assert.False(t, flags["canContinue"])
	assert.False(t, flags["isPaused"])
	assert.False(t, flags["isComplete"])

	id, err := h.orch.InitProject("")
	require.NoError(t, err)

	status = h.orch.Status()
	assert.Equal(t, id, status["projectId"])
	assert.Equal(t, string(StageIdeation), status["stage"])
	assert.Nil(t, status["quality"])
	flags = status["flags"].(map[string]bool)
	assert.True(t, flags["canContinue"])

	h.orch.PauseForQuota("billing quota exhausted")
	flags = h.orch.Status()["flags"].(map[string]bool)
	assert.True(t, flags["isPaused"])
	assert.False(t, flags["canContinue"])

	require.NoError(t, h.orch.Resume())
	h.orch.State().Stage = StageDone
	flags = h.orch.Status()["flags"].(map[string]bool)
	assert.True(t, flags["isComplete"])
	assert.False(t, flags["canContinue"])
}

func TestOrchestrator_ResetKeepingProject(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{"concept", "outline"}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.True(t, h.orch.Step(context.Background()).Success)
	require.True(t, h.orch.Step(context.Background()).Success)

	require.NoError(t, h.orch.Reset(true))
	state := h.orch.State()
	assert.Equal(t, id, state.ProjectID)
	assert.Equal(t, StageIdeation, state.Stage)
	assert.Equal(t, IterationCounters{}, state.Iteration)
	assert.Nil(t, state.Quality)

	persisted, err := h.states.Load(id)
	require.NoError(t, err)
	assert.Equal(t, StageIdeation, persisted.Stage)
}

func TestOrchestrator_ResetDiscardingProject(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.InitProject("")
	require.NoError(t, err)

	require.NoError(t, h.orch.Reset(false))
	assert.Nil(t, h.orch.State())
	assert.Contains(t, h.orch.Step(context.Background()).Error, "no project initialized")
}

func TestOrchestrator_LoadProjectRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.completer.responses = []string{"concept", "outline"}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.True(t, h.orch.Step(context.Background()).Success)
	require.True(t, h.orch.Step(context.Background()).Success)

	// A second orchestrator over the same store picks up where this one
	// left off.
	other := NewOrchestrator(h.cfg, h.log.Logger, h.states, h.artifacts, stubClient{name: "anthropic"}, h.completer)
	require.NoError(t, other.LoadProject(id))
	assert.Equal(t, StageDev, other.State().Stage)
	assert.Equal(t, 1, other.State().Iteration.Planning)
}

func TestOrchestrator_LoadProjectMissing(t *testing.T) {
	h := newHarness(t)
	err := h.orch.LoadProject("draft-nonexistent")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestOrchestrator_DryRunTaggedSimulated(t *testing.T) {
	h := newHarness(t)
	h.cfg.DryRun = true
	h.orch.completer = dryRunCompleter{}

	id, err := h.orch.InitProject("")
	require.NoError(t, err)
	require.True(t, h.orch.Step(context.Background()).Success)

	_, tags, err := h.artifacts.LoadArtifact(id, artifactName(StageIdeation, 1))
	require.NoError(t, err)
	assert.Equal(t, "true", tags["simulated"])
}

type dryRunCompleter struct{}

func (dryRunCompleter) Do(ctx context.Context, client provider.Client, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error) {
	return &provider.CompletionResponse{
		Content:      "[dry-run] simulated output",
		Model:        "test-model",
		Provider:     client.Name(),
		FinishReason: provider.DryRunFinishReason,
	}, nil
}
