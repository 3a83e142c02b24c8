// Package cli provides a line-oriented REPL over the orchestration graph.
//
// Example usage:
//
//	events := observe.NewChannel(64)
//	a, err := app.New(ctx, cfg, app.WithObserver(events))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	executor := cli.NewExecutor(a, "thread-1",
//	    cli.WithEvents(events.Events()),
//	    cli.WithProfiles(a.Profiles()),
//	)
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/switchboard/pkg/agent/graph"
	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/agent/supervisor"
	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// Submitter runs one turn. *app.App and *graph.Graph satisfy it.
type Submitter interface {
	Submit(ctx context.Context, turn graph.Turn) (*graph.Answer, error)
}

// Executor reads user lines from a terminal and submits them as turns on
// one thread.
type Executor struct {
	submitter Submitter
	threadID  string
	userID    string
	profiles  store.ProfileStore
	events    <-chan *types.AgentEvent

	reader *bufio.Reader
	writer io.Writer
	styles styles

	// Display options
	showEvents bool

	lastAnswer string
}

type styles struct {
	prompt lipgloss.Style
	event  lipgloss.Style
	author lipgloss.Style
	info   lipgloss.Style
	err    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		prompt: r.NewStyle().Foreground(lipgloss.Color("63")).Bold(true),
		event:  r.NewStyle().Foreground(lipgloss.Color("244")),
		author: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		info:   r.NewStyle().Foreground(lipgloss.Color("111")),
		err:    r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithUser scopes profile memory to userID instead of the thread.
func WithUser(userID string) ExecutorOption {
	return func(e *Executor) {
		if userID != "" {
			e.userID = userID
		}
	}
}

// WithEvents sets the event stream rendered while a turn runs.
func WithEvents(events <-chan *types.AgentEvent) ExecutorOption {
	return func(e *Executor) {
		e.events = events
	}
}

// WithProfiles enables /memory.
func WithProfiles(profiles store.ProfileStore) ExecutorOption {
	return func(e *Executor) {
		e.profiles = profiles
	}
}

// WithShowEvents enables/disables routing and capability progress lines.
func WithShowEvents(show bool) ExecutorOption {
	return func(e *Executor) {
		e.showEvents = show
	}
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// NewExecutor creates a new CLI executor submitting turns on threadID.
func NewExecutor(submitter Submitter, threadID string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		submitter:  submitter,
		threadID:   threadID,
		userID:     threadID,
		reader:     bufio.NewReader(os.Stdin),
		writer:     os.Stdout,
		showEvents: true,
	}

	for _, opt := range opts {
		opt(e)
	}
	e.styles = newStyles(lipgloss.NewRenderer(e.writer))

	return e
}

// Run starts the conversation loop. It returns when the user exits, the
// input ends, or ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	fmt.Fprintln(e.writer, e.styles.author.Render("Switchboard"))
	fmt.Fprintf(e.writer, "Thread %s. Type your message and press Enter. Commands: /copy, /memory, exit.\n\n", e.threadID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(e.writer, e.styles.prompt.Render(">")+" ")
		input, err := e.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input = strings.TrimSpace(input)
		switch {
		case input == "exit" || input == "quit":
			fmt.Fprintln(e.writer, "Goodbye.")
			return nil
		case input == "/copy":
			e.copyLastAnswer()
		case input == "/memory":
			e.printMemory(ctx)
		case input != "":
			if err := e.turn(ctx, input); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if eof {
			fmt.Fprintln(e.writer)
			return nil
		}
	}
}

// turn submits input and renders events until the answer arrives.
func (e *Executor) turn(ctx context.Context, input string) error {
	type outcome struct {
		answer *graph.Answer
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		answer, err := e.submitter.Submit(ctx, graph.Turn{ThreadID: e.threadID, UserID: e.userID, Text: input})
		done <- outcome{answer, err}
	}()

	for {
		select {
		case ev := <-e.events:
			e.handleEvent(ev)
		case res := <-done:
			e.drainEvents()
			if res.err != nil {
				fmt.Fprintln(e.writer, e.styles.err.Render(fmt.Sprintf("Error: %v", res.err)))
				return res.err
			}
			e.printAnswer(res.answer)
			return nil
		}
	}
}

// drainEvents renders events already buffered when the turn finished.
func (e *Executor) drainEvents() {
	if e.events == nil {
		return
	}
	for {
		select {
		case ev := <-e.events:
			e.handleEvent(ev)
		default:
			return
		}
	}
}

// handleEvent renders routing and capability progress.
func (e *Executor) handleEvent(event *types.AgentEvent) {
	if event == nil || !e.showEvents {
		return
	}
	var line string
	switch event.Type {
	case types.EventTypeSupervisorDecision:
		if event.Content == supervisor.Terminate {
			return
		}
		line = fmt.Sprintf("→ %s", event.Content)
	case types.EventTypeToolCall:
		line = fmt.Sprintf("  [%s] %s %s", event.Worker, event.ToolName, event.ToolInput)
	case types.EventTypeToolResultError:
		line = fmt.Sprintf("  [%s] %s failed: %v", event.Worker, event.ToolName, event.Error)
	default:
		return
	}
	fmt.Fprintln(e.writer, e.styles.event.Render(line))
}

func (e *Executor) printAnswer(answer *graph.Answer) {
	e.lastAnswer = answer.Content
	if answer.Author != "" {
		fmt.Fprintln(e.writer, e.styles.author.Render(answer.Author+":"))
	}
	fmt.Fprintln(e.writer, answer.Content)
	fmt.Fprintln(e.writer)
}

func (e *Executor) copyLastAnswer() {
	if e.lastAnswer == "" {
		fmt.Fprintln(e.writer, e.styles.info.Render("Nothing to copy yet."))
		return
	}
	if err := clipboardWriteAll(e.lastAnswer); err != nil {
		fmt.Fprintln(e.writer, e.styles.err.Render(fmt.Sprintf("Failed to copy: %v", err)))
		return
	}
	fmt.Fprintln(e.writer, e.styles.info.Render("Copied last answer to clipboard."))
}

func (e *Executor) printMemory(ctx context.Context) {
	if e.profiles == nil {
		fmt.Fprintln(e.writer, e.styles.err.Render("Memory store not initialized."))
		return
	}
	profile, err := e.profiles.Get(ctx, e.userID)
	if err != nil {
		fmt.Fprintln(e.writer, e.styles.err.Render(fmt.Sprintf("Error: %v", err)))
		return
	}
	if len(profile) == 0 {
		fmt.Fprintln(e.writer, e.styles.info.Render(fmt.Sprintf("No saved preferences for %s.", e.userID)))
		return
	}
	fmt.Fprintln(e.writer, e.styles.info.Render(fmt.Sprintf("Saved preferences for %s:", e.userID)))
	for _, line := range memory.Lines(profile) {
		fmt.Fprintln(e.writer, line)
	}
}
