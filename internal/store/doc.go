// Package store persists pipeline state and stage artifacts on the local
// filesystem. State is a single JSON document per project, written
// atomically; artifacts are markdown files with a YAML frontmatter block so
// they stay readable and diffable in the project workspace.
package store
