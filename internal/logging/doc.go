// Package logging provides structured logging for draftd built on Zap.
//
// Loggers are context-aware: project and stage identifiers attached to a
// context.Context via WithProject/WithStage are emitted on every log line,
// so a single pipeline run can be followed across packages without threading
// fields by hand.
package logging
