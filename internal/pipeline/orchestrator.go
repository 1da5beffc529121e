package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/fyrsmithlabs/draftd/internal/provider"
	"go.uber.org/zap"
)

// StateStore persists project state. Saves must be atomic: a reader never
// observes a half-written record.
type StateStore interface {
	Save(projectID string, state *ProjectState) error
	Load(projectID string) (*ProjectState, error)
}

// ArtifactStore persists stage deliverables. Loading a missing artifact
// returns empty content and empty metadata, never an error.
type ArtifactStore interface {
	SaveArtifact(projectID, name, title, content string, tags map[string]string) error
	LoadArtifact(projectID, name string) (string, map[string]string, error)
}

// Checkpointer records a durable checkpoint of the project workspace after
// a successful step.
type Checkpointer interface {
	Commit(ctx context.Context, projectID, message string) error
}

// Completer executes one logical completion request, including all retry
// and fallback handling. The provider Engine is the production implementation.
type Completer interface {
	Do(ctx context.Context, client provider.Client, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error)
}

// StepResult is the caller-visible outcome of one Step. Expected failure
// modes come back here, not as Go errors.
type StepResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Orchestrator owns one ProjectState and one provider client at a time and
// applies the stage transition table on every step.
type Orchestrator struct {
	cfg       *config.Config
	log       *logging.Logger
	states    StateStore
	artifacts ArtifactStore

	client    provider.Client
	completer Completer

	checkpoints Checkpointer
	prompts     PromptBuilder
	scrub       func(string) string

	state *ProjectState
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithCheckpointer enables workspace checkpointing after successful steps.
func WithCheckpointer(c Checkpointer) Option {
	return func(o *Orchestrator) { o.checkpoints = c }
}

// WithPromptBuilder replaces the default prompt assembly.
func WithPromptBuilder(b PromptBuilder) Option {
	return func(o *Orchestrator) { o.prompts = b }
}

// WithScrubFunc installs a masking function applied to artifact content
// before it is persisted or checkpointed.
func WithScrubFunc(fn func(string) string) Option {
	return func(o *Orchestrator) { o.scrub = fn }
}

// NewOrchestrator wires an orchestrator. The configuration is shared, not
// copied; it is constructed once at startup.
func NewOrchestrator(cfg *config.Config, log *logging.Logger, states StateStore, artifacts ArtifactStore, client provider.Client, completer Completer, opts ...Option) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		log:       log,
		states:    states,
		artifacts: artifacts,
		client:    client,
		completer: completer,
		prompts:   DefaultPromptBuilder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InitProject starts a project. An empty id generates a fresh unique one.
// Calling again replaces the in-memory project.
func (o *Orchestrator) InitProject(id string) (string, error) {
	if id == "" {
		id = NewProjectID()
	}
	o.state = NewProjectState(id)
	if err := o.SaveState(); err != nil {
		return "", fmt.Errorf("failed to save initial state: %w", err)
	}
	return id, nil
}

// LoadProject restores a previously saved project. The restored state is
// equivalent to the last SaveState call.
func (o *Orchestrator) LoadProject(id string) error {
	state, err := o.states.Load(id)
	if err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("persisted state for %s is invalid: %w", id, err)
	}
	o.state = state
	return nil
}

// SaveState persists the current state.
func (o *Orchestrator) SaveState() error {
	if o.state == nil {
		return ErrNotInitialized
	}
	return o.states.Save(o.state.ProjectID, o.state)
}

// State exposes the live project state. Callers must treat it as read-only;
// it is mutated exclusively by Step, PauseForQuota, Resume and Reset.
func (o *Orchestrator) State() *ProjectState {
	return o.state
}

// Status reports pipeline position without side effects. The returned map
// shape is the contract CLI and API layers depend on.
func (o *Orchestrator) Status() map[string]any {
	status := map[string]any{
		"projectId": nil,
		"stage":     "",
		"iteration": map[string]int{},
		"quality":   nil,
		"flags": map[string]bool{
			"canContinue": false,
			"isPaused":    false,
			"isComplete":  false,
		},
		"dryRun": o.cfg.DryRun,
	}
	if o.state == nil {
		return status
	}

	isPaused := o.state.Stage == StagePausedQuota
	isComplete := o.state.Stage == StageDone

	status["projectId"] = o.state.ProjectID
	status["stage"] = string(o.state.Stage)
	status["iteration"] = o.state.Iteration.AsMap()
	if o.state.Quality != nil {
		status["quality"] = o.state.Quality
	}
	status["flags"] = map[string]bool{
		"canContinue": !isPaused && !isComplete,
		"isPaused":    isPaused,
		"isComplete":  isComplete,
	}
	return status
}

// Step performs one unit of work: dispatch the current stage to the
// provider, persist the artifact, and advance the transition table.
//
// Expected failures never surface as Go errors. A paused pipeline refuses
// with success=false; a complete pipeline is a success no-op; a provider
// failure beyond retry policy pauses the pipeline, persists state, and then
// reports the failure.
func (o *Orchestrator) Step(ctx context.Context) StepResult {
	if o.state == nil {
		return StepResult{Success: false, Error: ErrNotInitialized.Error()}
	}

	state := o.state
	switch state.Stage {
	case StagePausedQuota:
		return StepResult{
			Success: false,
			Error:   fmt.Sprintf("pipeline is paused: %s (resume before stepping again)", state.PauseReason),
		}
	case StageDone:
		return StepResult{Success: true, Message: "pipeline is complete; nothing to do"}
	}

	ctx = logging.WithProject(ctx, state.ProjectID)
	ctx = logging.WithStage(ctx, string(state.Stage))

	// Checkpoint before dispatch: a kill mid-request loses only the
	// in-flight request, never pipeline position.
	if err := o.SaveState(); err != nil {
		return StepResult{Success: false, Error: fmt.Sprintf("failed to save state: %v", err)}
	}

	stage := state.Stage
	prior := o.loadFeederArtifact(stage)
	messages := o.prompts.Build(state, prior)

	o.log.Info(ctx, "dispatching stage work",
		zap.String("provider", o.client.Name()),
		zap.Int("iteration", state.Iteration.Count(stage)+1))

	resp, err := o.completer.Do(ctx, o.client, messages, provider.Options{})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return StepResult{Success: false, Error: fmt.Sprintf("step interrupted: %v", err)}
		}
		return o.pauseAndReport(ctx, err)
	}

	content := resp.Content
	if o.scrub != nil {
		content = o.scrub(content)
	}

	state.Iteration.Increment(stage)
	iteration := state.Iteration.Count(stage)

	name := artifactName(stage, iteration)
	tags := map[string]string{
		"stage":     string(stage),
		"provider":  resp.Provider,
		"model":     resp.Model,
		"iteration": strconv.Itoa(iteration),
	}
	if provider.IsSimulated(resp) {
		tags["simulated"] = "true"
	}
	title := fmt.Sprintf("%s deliverable #%d", stage, iteration)
	if err := o.artifacts.SaveArtifact(state.ProjectID, name, title, content, tags); err != nil {
		return StepResult{Success: false, Error: fmt.Sprintf("failed to persist artifact: %v", err)}
	}

	o.advance(resp)
	state.touch()

	if err := o.SaveState(); err != nil {
		return StepResult{Success: false, Error: fmt.Sprintf("failed to save state: %v", err)}
	}

	if o.checkpoints != nil && o.cfg.Checkpoint.Enabled {
		msg := fmt.Sprintf("draftd: %s iteration %d", stage, iteration)
		if err := o.checkpoints.Commit(ctx, state.ProjectID, msg); err != nil {
			// Checkpointing is best-effort; the artifact and state are
			// already durable.
			o.log.Warn(ctx, "checkpoint commit failed", zap.Error(err))
		}
	}

	message := fmt.Sprintf("completed %s step %d, now at %s", stage, iteration, state.Stage)
	if state.Stage == StageDone {
		message = fmt.Sprintf("completed %s step %d, pipeline complete", stage, iteration)
	}
	return StepResult{Success: true, Message: message}
}

// advance applies the stage transition table after a successful unit of
// work. The qa stage branches on the quality gate; every other productive
// stage moves to its linear successor.
func (o *Orchestrator) advance(resp *provider.CompletionResponse) {
	state := o.state
	if state.Stage != StageQA {
		state.Stage = state.Stage.next()
		return
	}

	quality := ParseQuality(resp.Content)
	state.Quality = &quality

	switch {
	case quality.Passed:
		state.Stage = StageDone
	case state.Iteration.QA >= o.cfg.MaxQALoops:
		// The dev/qa loop is bounded: after the limit the pipeline
		// finishes with the failing quality record intact.
		o.log.Warn(context.Background(), "qa loop limit reached, finishing with failing quality",
			zap.String("project", state.ProjectID),
			zap.Int("qa_iterations", state.Iteration.QA))
		state.Stage = StageDone
	default:
		state.Stage = StageDev
	}
}

// pauseAndReport pauses the pipeline for a provider failure, persists the
// paused state, and only then reports the failure to the caller.
func (o *Orchestrator) pauseAndReport(ctx context.Context, cause error) StepResult {
	reason := cause.Error()
	o.PauseForQuota(reason)

	if err := o.SaveState(); err != nil {
		o.log.Error(ctx, "failed to persist paused state", zap.Error(err))
	}
	o.log.Warn(ctx, "pipeline paused", zap.String("reason", reason))

	return StepResult{
		Success: false,
		Error:   fmt.Sprintf("pipeline paused: %s", reason),
	}
}

// PauseForQuota records the pause reason and enters the overlay state,
// remembering which stage was interrupted.
func (o *Orchestrator) PauseForQuota(reason string) {
	if o.state == nil {
		return
	}
	o.state.PausedFrom = o.state.Stage
	o.state.Stage = StagePausedQuota
	o.state.PauseReason = reason
	o.state.touch()
}

// Resume leaves the paused state and restores the interrupted stage. The
// failed unit of work runs again on the next Step; it is never dropped.
func (o *Orchestrator) Resume() error {
	if o.state == nil {
		return ErrNotInitialized
	}
	if o.state.Stage != StagePausedQuota {
		return ErrNotPaused
	}

	restored := o.state.PausedFrom
	if !restored.Productive() {
		restored = StageIdeation
	}
	o.state.Stage = restored
	o.state.PauseReason = ""
	o.state.PausedFrom = ""
	o.state.touch()

	return o.SaveState()
}

// Reset returns the pipeline to the start. keepProject retains the project
// identifier; otherwise the in-memory project is cleared entirely.
func (o *Orchestrator) Reset(keepProject bool) error {
	if o.state == nil {
		return ErrNotInitialized
	}

	if !keepProject {
		o.state = nil
		return nil
	}

	o.state.Stage = StageIdeation
	o.state.Iteration.Reset()
	o.state.Quality = nil
	o.state.PauseReason = ""
	o.state.PausedFrom = ""
	o.state.touch()
	return o.SaveState()
}

// loadFeederArtifact loads the latest artifact of the stage feeding the
// current one. Missing artifacts read as empty, by contract.
func (o *Orchestrator) loadFeederArtifact(stage Stage) string {
	feeder := stage.feeder()
	if feeder == "" {
		return ""
	}
	count := o.state.Iteration.Count(feeder)
	if count == 0 {
		return ""
	}
	content, _, err := o.artifacts.LoadArtifact(o.state.ProjectID, artifactName(feeder, count))
	if err != nil {
		o.log.Warn(context.Background(), "failed to load feeder artifact",
			zap.String("stage", string(feeder)), zap.Error(err))
		return ""
	}
	return content
}

// artifactName names one stage deliverable.
func artifactName(stage Stage, iteration int) string {
	return fmt.Sprintf("%s-%03d", stage, iteration)
}
