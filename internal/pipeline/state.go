package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrStateNotFound  = errors.New("project state not found")
	ErrNotInitialized = errors.New("no project initialized")
	ErrNotPaused      = errors.New("pipeline is not paused")
)

// Stage is a phase of the content pipeline.
type Stage string

const (
	StageIdeation    Stage = "ideation"
	StagePlanning    Stage = "planning_draft"
	StageDev         Stage = "dev"
	StageQA          Stage = "qa"
	StageDone        Stage = "done"
	StagePausedQuota Stage = "paused_quota"
)

// ProductiveStages returns the stages that perform work, in pipeline order.
func ProductiveStages() []Stage {
	return []Stage{StageIdeation, StagePlanning, StageDev, StageQA}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageIdeation, StagePlanning, StageDev, StageQA, StageDone, StagePausedQuota:
		return true
	}
	return false
}

// Productive reports whether the stage performs a unit of work.
func (s Stage) Productive() bool {
	switch s {
	case StageIdeation, StagePlanning, StageDev, StageQA:
		return true
	}
	return false
}

// next returns the linear successor of a productive stage. The qa stage has
// no fixed successor: the quality gate decides between done and dev.
func (s Stage) next() Stage {
	switch s {
	case StageIdeation:
		return StagePlanning
	case StagePlanning:
		return StageDev
	case StageDev:
		return StageQA
	}
	return StageDone
}

// feeder returns the stage whose latest artifact feeds s, or "" for the
// first stage.
func (s Stage) feeder() Stage {
	switch s {
	case StagePlanning:
		return StageIdeation
	case StageDev:
		return StagePlanning
	case StageQA:
		return StageDev
	}
	return ""
}

// IterationCounters tracks units of work performed per productive stage.
// Counters only grow within a project lifetime; Reset is the one exception.
type IterationCounters struct {
	Ideation int `json:"ideation"`
	Planning int `json:"planning_draft"`
	Dev      int `json:"dev"`
	QA       int `json:"qa"`
}

// Increment bumps the counter for the given stage.
func (c *IterationCounters) Increment(stage Stage) {
	switch stage {
	case StageIdeation:
		c.Ideation++
	case StagePlanning:
		c.Planning++
	case StageDev:
		c.Dev++
	case StageQA:
		c.QA++
	}
}

// Count returns the counter for the given stage.
func (c *IterationCounters) Count(stage Stage) int {
	switch stage {
	case StageIdeation:
		return c.Ideation
	case StagePlanning:
		return c.Planning
	case StageDev:
		return c.Dev
	case StageQA:
		return c.QA
	}
	return 0
}

// AsMap returns the counters keyed by stage name.
func (c *IterationCounters) AsMap() map[string]int {
	return map[string]int{
		string(StageIdeation): c.Ideation,
		string(StagePlanning): c.Planning,
		string(StageDev):      c.Dev,
		string(StageQA):       c.QA,
	}
}

// Reset zeroes all counters.
func (c *IterationCounters) Reset() {
	*c = IterationCounters{}
}

// QualitySignal is the quality-review judgment produced by the qa stage.
// The orchestrator only branches on Passed; everything else is opaque.
type QualitySignal struct {
	Passed  bool   `json:"passed"`
	Summary string `json:"summary,omitempty"`
}

// ProjectState is the persisted record of pipeline position.
type ProjectState struct {
	ProjectID string            `json:"project_id"`
	Stage     Stage             `json:"stage"`
	Iteration IterationCounters `json:"iteration"`
	Quality   *QualitySignal    `json:"quality,omitempty"`

	// PauseReason is set exactly while Stage == StagePausedQuota.
	PauseReason string `json:"pause_reason,omitempty"`

	// PausedFrom remembers which stage the pause interrupted, so resuming
	// retries the failed unit of work instead of dropping it.
	PausedFrom Stage `json:"paused_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProjectState creates a fresh state at the start of the pipeline.
func NewProjectState(projectID string) *ProjectState {
	now := time.Now().UTC()
	return &ProjectState{
		ProjectID: projectID,
		Stage:     StageIdeation,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *ProjectState) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// NewProjectID generates a unique project identifier.
func NewProjectID() string {
	return "draft-" + uuid.NewString()
}

// Validate checks the state invariants.
func (s *ProjectState) Validate() error {
	if s.ProjectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if !s.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", s.Stage)
	}
	if (s.Stage == StagePausedQuota) != (s.PauseReason != "") {
		return fmt.Errorf("pause reason must be set exactly while paused (stage=%s, reason=%q)", s.Stage, s.PauseReason)
	}
	if s.Stage == StagePausedQuota && !s.PausedFrom.Productive() {
		return fmt.Errorf("paused state must remember a productive stage, got %q", s.PausedFrom)
	}
	if s.Iteration.Ideation < 0 || s.Iteration.Planning < 0 || s.Iteration.Dev < 0 || s.Iteration.QA < 0 {
		return fmt.Errorf("iteration counters cannot be negative")
	}
	return nil
}
