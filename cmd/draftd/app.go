package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/checkpoint"
	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/fyrsmithlabs/draftd/internal/pipeline"
	"github.com/fyrsmithlabs/draftd/internal/provider"
	"github.com/fyrsmithlabs/draftd/internal/secrets"
	"github.com/fyrsmithlabs/draftd/internal/store"
)

// app holds the wired components shared by every command.
type app struct {
	cfg   *config.Config
	log   *logging.Logger
	store *store.FileStore
	orch  *pipeline.Orchestrator
}

const defaultConfigFile = "draftd.yaml"

// newApp loads configuration and wires the pipeline stack.
func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.DryRun = true
	}

	log, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	fileStore, err := store.NewFileStore(cfg.Workspace, log)
	if err != nil {
		return nil, err
	}

	clients := provider.FromConfig(cfg, log)
	client, err := provider.Select(cfg, clients)
	if err != nil {
		return nil, err
	}

	engine := provider.NewEngine(provider.RetryConfigFrom(cfg.Retry), log)

	masker := secrets.MustMasker()
	scrub := func(content string) string {
		return masker.Mask(content).Content
	}

	ckpt, err := checkpoint.NewService(fileStore.Root(), log)
	if err != nil {
		return nil, err
	}

	orch := pipeline.NewOrchestrator(cfg, log, fileStore, fileStore, client, engine,
		pipeline.WithCheckpointer(ckpt),
		pipeline.WithScrubFunc(scrub),
	)

	return &app{cfg: cfg, log: log, store: fileStore, orch: orch}, nil
}

// close flushes buffered log output.
func (a *app) close() {
	_ = a.log.Sync()
}

// loadProject resolves the target project and loads its state. An explicit
// --project wins; otherwise a workspace holding exactly one project is
// unambiguous and that project is used.
func (a *app) loadProject() error {
	id := projectID
	if id == "" {
		var err error
		id, err = a.findSoleProject()
		if err != nil {
			return err
		}
	}
	return a.orch.LoadProject(id)
}

func (a *app) findSoleProject() (string, error) {
	entries, err := os.ReadDir(a.store.Root())
	if err != nil {
		return "", fmt.Errorf("failed to read workspace: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.store.Root(), e.Name(), "state.json")); err == nil {
			ids = append(ids, e.Name())
		}
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no projects in workspace %s (run \"draftd init\" first)", a.store.Root())
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("workspace has %d projects, pick one with --project: %s", len(ids), strings.Join(ids, ", "))
	}
}
