package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/fyrsmithlabs/draftd/internal/pipeline"
	"go.uber.org/zap"
)

const (
	stateFileName = "state.json"
	artifactsDir  = "artifacts"

	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore lays projects out under a workspace root:
//
//	<root>/<projectID>/state.json
//	<root>/<projectID>/artifacts/<name>.md
type FileStore struct {
	root string
	log  *logging.Logger
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string, log *logging.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace directory cannot be empty")
	}
	if log == nil {
		log = logging.Nop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &FileStore{root: abs, log: log}, nil
}

// Root returns the absolute workspace directory.
func (s *FileStore) Root() string {
	return s.root
}

// ProjectDir returns the directory holding one project.
func (s *FileStore) ProjectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

// Save persists project state. The write is atomic: the state file is
// replaced in one rename, so a crash mid-write leaves the previous state
// intact.
func (s *FileStore) Save(projectID string, state *pipeline.ProjectState) error {
	if err := validateProjectID(projectID); err != nil {
		return err
	}
	dir := s.ProjectDir(projectID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, stateFileName), data)
}

// Load reads project state. A project with no saved state returns
// pipeline.ErrStateNotFound.
func (s *FileStore) Load(projectID string) (*pipeline.ProjectState, error) {
	if err := validateProjectID(projectID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.ProjectDir(projectID), stateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pipeline.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state pipeline.ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("state file for %s is corrupt: %w", projectID, err)
	}
	return &state, nil
}

// SaveArtifact writes one stage deliverable as markdown with YAML
// frontmatter. Writes are atomic like state saves.
func (s *FileStore) SaveArtifact(projectID, name, title, content string, tags map[string]string) error {
	if err := validateProjectID(projectID); err != nil {
		return err
	}
	if err := validateArtifactName(name); err != nil {
		return err
	}
	dir := filepath.Join(s.ProjectDir(projectID), artifactsDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	doc, err := encodeArtifact(title, content, tags)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".md")
	if err := writeFileAtomic(path, doc); err != nil {
		return err
	}
	s.log.Debug(context.Background(), "artifact saved", zap.String("project", projectID), zap.String("artifact", name))
	return nil
}

// LoadArtifact reads one stage deliverable. A missing artifact is not an
// error: it returns empty content and empty metadata so callers can treat
// "nothing yet" uniformly.
func (s *FileStore) LoadArtifact(projectID, name string) (string, map[string]string, error) {
	if err := validateProjectID(projectID); err != nil {
		return "", nil, err
	}
	if err := validateArtifactName(name); err != nil {
		return "", nil, err
	}
	path := filepath.Join(s.ProjectDir(projectID), artifactsDir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", map[string]string{}, nil
		}
		return "", nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return decodeArtifact(data)
}

// ListArtifacts returns the artifact names stored for a project, sorted by
// the filesystem's lexical order. Numbered artifact names make that the
// pipeline order too.
func (s *FileStore) ListArtifacts(projectID string) ([]string, error) {
	if err := validateProjectID(projectID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.ProjectDir(projectID), artifactsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// validateProjectID rejects identifiers that could escape the workspace.
func validateProjectID(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return fmt.Errorf("invalid project id %q", projectID)
	}
	return nil
}

func validateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// touchTimestamp is split out so artifact metadata stays testable.
var touchTimestamp = func() time.Time { return time.Now().UTC() }
