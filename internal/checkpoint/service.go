package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

const (
	commitAuthorName  = "draftd"
	commitAuthorEmail = "draftd@localhost"
)

// Service commits project workspace changes to the git repository rooted at
// the workspace directory.
type Service struct {
	path string
	log  *logging.Logger
}

// NewService creates a checkpointer over the given workspace directory. The
// directory does not need to be a git repository; Commit degrades to a
// no-op when it is not.
func NewService(path string, log *logging.Logger) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("workspace path cannot be empty")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{path: path, log: log}, nil
}

// Commit stages everything under the workspace and records one commit with
// the given message. A clean worktree or a non-repository workspace commits
// nothing and returns nil.
func (s *Service) Commit(ctx context.Context, projectID, message string) error {
	repo, err := git.PlainOpen(s.path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			s.log.Debug(ctx, "workspace is not a git repository, skipping checkpoint",
				zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("failed to open workspace repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage workspace changes: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		s.log.Debug(ctx, "worktree is clean, nothing to checkpoint",
			zap.String("project", projectID))
		return nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorName,
			Email: commitAuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	s.log.Info(ctx, "checkpoint committed",
		zap.String("project", projectID),
		zap.String("commit", hash.String()[:8]))
	return nil
}
