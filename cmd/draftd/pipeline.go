package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var resetKeepProject bool

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetKeepProject, "keep", true, "Keep the project id, only rewind the pipeline")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start a new content project",
	Long: `Start a new content project in the workspace.

The project begins at the ideation stage. Pass --project to choose the
identifier; otherwise a unique one is generated and printed.

Examples:
  # New project with a generated id
  draftd init

  # New project with a chosen id
  draftd init --project launch-post`,
	RunE: runInit,
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Perform one unit of pipeline work",
	Long: `Dispatch the current stage to the configured provider, save the
deliverable, and advance the pipeline.

Examples:
  # One step of the only project in the workspace
  draftd step

  # One simulated step, no network traffic
  draftd step --dry-run`,
	RunE: runStep,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Step the pipeline until it pauses or completes",
	Long: `Repeatedly perform units of work until the pipeline reaches the done
stage or pauses on a provider failure.

Examples:
  # Drive a project to completion
  draftd run --project launch-post`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline position as JSON",
	RunE:  runStatus,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a pipeline paused on a provider failure",
	Long: `Leave the paused state and restore the stage that was interrupted.
The failed unit of work runs again on the next step.`,
	RunE: runResume,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rewind the pipeline to the ideation stage",
	Long: `Rewind the pipeline to the ideation stage, clearing iteration
counters and any recorded quality verdict. Artifacts already on disk are
left in place.

With --keep=false the project association is discarded entirely.`,
	RunE: runReset,
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.orch.InitProject(projectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initialized project %s at %s\n", id, a.store.ProjectDir(id))
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadProject(); err != nil {
		return err
	}

	result := a.orch.Step(cmd.Context())
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadProject(); err != nil {
		return err
	}

	for {
		flags := a.orch.Status()["flags"].(map[string]bool)
		if !flags["canContinue"] {
			break
		}
		result := a.orch.Step(cmd.Context())
		if !result.Success {
			return fmt.Errorf("%s", result.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	}

	return printStatus(cmd, a)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadProject(); err != nil {
		return err
	}
	return printStatus(cmd, a)
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadProject(); err != nil {
		return err
	}
	if err := a.orch.Resume(); err != nil {
		return err
	}

	state := a.orch.State()
	fmt.Fprintf(cmd.OutOrStdout(), "resumed project %s at stage %s\n", state.ProjectID, state.Stage)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadProject(); err != nil {
		return err
	}
	if err := a.orch.Reset(resetKeepProject); err != nil {
		return err
	}

	if resetKeepProject {
		fmt.Fprintf(cmd.OutOrStdout(), "project reset to %s\n", a.orch.State().Stage)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "project association cleared")
	}
	return nil
}

func printStatus(cmd *cobra.Command, a *app) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(a.orch.Status())
}
