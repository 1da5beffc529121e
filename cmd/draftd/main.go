// Package main implements the draftd CLI, a staged content-production
// pipeline that dispatches work to LLM providers and persists every
// intermediate deliverable on disk.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// persistent flags
	configPath string
	projectID  string
	dryRun     bool

	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "draftd",
	Short: "Staged content-production pipeline over LLM providers",
	Long: `draftd runs a content project through fixed stages: ideation, planning,
drafting, and quality review. Each stage dispatches one unit of work to a
configured LLM provider, saves the deliverable to the project workspace, and
records pipeline position so work can resume across invocations.

Provider failures beyond the retry policy pause the pipeline instead of
losing work; "draftd resume" picks up exactly where it stopped.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: draftd.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "Project identifier (default: the only project in the workspace)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Simulate provider calls instead of hitting the network")
}
