// Package pipeline drives the content-production state machine:
// ideation -> planning_draft -> dev -> qa -> done, with qa looping back to
// dev until the quality gate passes and a paused_quota overlay state for
// backend quota exhaustion.
//
// The Orchestrator owns one ProjectState and one provider client at a time.
// Each Step dispatches one unit of work, persists the resulting artifact,
// and advances the state machine; every expected failure mode comes back as
// a StepResult value, never a panic or a raw error. State is saved at
// well-defined checkpoints (start of step, pause, success), so a killed
// process loses at most the in-flight request and never corrupts
// persisted state.
package pipeline
