// Package checkpoint records workspace progress as git commits.
//
// Each successful pipeline step commits the project's state and artifacts,
// so the full revision history of a draft is browsable with ordinary git
// tooling. Checkpointing is best-effort: a workspace that is not a git
// repository is skipped silently.
package checkpoint
