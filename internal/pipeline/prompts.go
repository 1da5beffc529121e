package pipeline

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/provider"
)

// PromptBuilder assembles the conversation for one unit of stage work.
type PromptBuilder interface {
	Build(state *ProjectState, prior string) []provider.Message
}

// DefaultPromptBuilder produces plain stage-role prompts that thread the
// previous stage's artifact into the request.
type DefaultPromptBuilder struct{}

var stageSystemPrompts = map[Stage]string{
	StageIdeation: "You are the ideation lead for a content-production team. " +
		"Produce a concise concept brief: topic, angle, audience, and key points.",
	StagePlanning: "You are the planning editor. Turn the concept brief into a " +
		"structured outline with sections and the goal of each section.",
	StageDev: "You are the writer. Implement the outline as a complete draft, " +
		"section by section.",
	StageQA: "You are the quality reviewer. Review the draft for structure, " +
		"clarity and completeness. End your review with a line reading exactly " +
		"\"VERDICT: PASS\" or \"VERDICT: FAIL\".",
}

// Build assembles the messages for the current stage.
func (DefaultPromptBuilder) Build(state *ProjectState, prior string) []provider.Message {
	var user strings.Builder

	switch state.Stage {
	case StageIdeation:
		user.WriteString("Start a new content project. Produce the concept brief.")
	case StagePlanning:
		user.WriteString("Plan the following concept:\n\n")
		user.WriteString(prior)
	case StageDev:
		user.WriteString("Write the draft for the following outline:\n\n")
		user.WriteString(prior)
		if state.Quality != nil && !state.Quality.Passed && state.Quality.Summary != "" {
			fmt.Fprintf(&user, "\n\nThe previous draft failed review: %s\nAddress the feedback.", state.Quality.Summary)
		}
	case StageQA:
		user.WriteString("Review the following draft:\n\n")
		user.WriteString(prior)
	}

	return []provider.Message{
		{Role: provider.RoleSystem, Content: stageSystemPrompts[state.Stage]},
		{Role: provider.RoleUser, Content: user.String()},
	}
}
