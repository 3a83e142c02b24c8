// Package prompts assembles the system prompts shown to the supervisor and
// to each worker.
package prompts

import (
	"fmt"
	"strings"

	"github.com/entrhq/switchboard/pkg/llm"
)

// FinishOption is the supervisor's choice to end the turn.
const FinishOption = "FINISH"

// Route is one worker as the supervisor sees it.
type Route struct {
	Name        string
	Description string
}

// SupervisorPrompt lists the workers, the allowed replies and one routing
// guideline per worker.
func SupervisorPrompt(routes []Route) string {
	names := make([]string, len(routes))
	for i, r := range routes {
		names[i] = r.Name
	}
	options := append(append([]string(nil), names...), FinishOption)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a supervisor managing these workers: %s. ", quoteList(names))
	fmt.Fprintf(&b, "Respond ONLY with the next worker from: %s. ", quoteList(options))
	b.WriteString("Routing guidelines:\n")
	for _, r := range routes {
		if r.Description == "" {
			fmt.Fprintf(&b, "- %s\n", r.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s for %s\n", r.Name, r.Description)
	}
	fmt.Fprintf(&b, "- %s when task is complete.\n", FinishOption)
	return b.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// WorkerPromptBuilder constructs a worker's system prompt.
type WorkerPromptBuilder struct {
	name         string
	instructions string
	tools        []llm.ToolSpec
}

// NewWorkerPromptBuilder creates a builder for the named worker.
func NewWorkerPromptBuilder(name string) *WorkerPromptBuilder {
	return &WorkerPromptBuilder{name: name}
}

// WithInstructions sets the worker's role instructions.
func (pb *WorkerPromptBuilder) WithInstructions(instructions string) *WorkerPromptBuilder {
	pb.instructions = instructions
	return pb
}

// WithTools lists the tools the worker may call.
func (pb *WorkerPromptBuilder) WithTools(specs []llm.ToolSpec) *WorkerPromptBuilder {
	pb.tools = specs
	return pb
}

// Build returns the prompt, or "" when there is nothing to say.
func (pb *WorkerPromptBuilder) Build() string {
	if pb.instructions == "" && len(pb.tools) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<role name=%q>\n", pb.name)
	if pb.instructions != "" {
		b.WriteString(strings.TrimSpace(pb.instructions))
		b.WriteString("\n")
	}
	b.WriteString("</role>")

	if len(pb.tools) > 0 {
		b.WriteString("\n\n<available_tools>\n")
		for _, t := range pb.tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		b.WriteString("</available_tools>\n\n")
		b.WriteString(WorkerToolUsePrompt)
	}
	return b.String()
}

// FormatProfile renders profile lines under ProfileHeader followed by the
// rubric. lines must already be formatted as "- key: value".
func FormatProfile(lines []string) string {
	return ProfileHeader + "\n" + strings.Join(lines, "\n") + "\n\n" + ProfileRubric
}

// DocumentAnswer fills DocumentAnswerTemplate.
func DocumentAnswer(question, context string) string {
	return fmt.Sprintf(DocumentAnswerTemplate, question, context)
}

// SQLDraft fills SQLDraftTemplate.
func SQLDraft(schema, question string, topK int) string {
	return fmt.Sprintf(SQLDraftTemplate, topK, schema, question)
}
