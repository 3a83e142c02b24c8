package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Capability names known to the application wiring.
const (
	CapabilityWebSearch      = "web_search"
	CapabilityFetchPage      = "fetch_page"
	CapabilityDocumentSearch = "document_search"
	CapabilitySQLQuery       = "sql_query"
	CapabilityRemember       = "remember"
	CapabilityRecall         = "recall"
)

// reservedWorkerName is the supervisor's terminate choice and cannot name a worker.
const reservedWorkerName = "FINISH"

// WorkerSpec describes one worker of the roster.
type WorkerSpec struct {
	// Name identifies the worker to the supervisor and stamps its messages.
	Name string `yaml:"name"`

	// Description is the routing criterion shown to the supervisor.
	Description string `yaml:"description"`

	// Instructions is the worker's own system prompt. Optional.
	Instructions string `yaml:"instructions,omitempty"`

	// Capabilities lists the tool names the worker may call.
	Capabilities []string `yaml:"capabilities"`
}

// Roster is the ordered set of workers the supervisor routes between.
type Roster struct {
	Workers []WorkerSpec `yaml:"workers"`
}

// DefaultRoster returns the built-in four workers.
func DefaultRoster() *Roster {
	memory := []string{CapabilityRemember, CapabilityRecall}
	with := func(caps ...string) []string {
		return append(caps, memory...)
	}
	return &Roster{Workers: []WorkerSpec{
		{
			Name:         "web_researcher",
			Description:  "public web and news lookups",
			Instructions: "You research questions on the public web. Cite the pages you used.",
			Capabilities: with(CapabilityWebSearch, CapabilityFetchPage),
		},
		{
			Name:         "rag",
			Description:  "questions about the local document collection",
			Instructions: "You answer from the local document collection using the document search tool.",
			Capabilities: with(CapabilityDocumentSearch),
		},
		{
			Name:         "nl2sql",
			Description:  "questions answered by querying the SQL database",
			Instructions: "You answer data questions by querying the SQL database.",
			Capabilities: with(CapabilitySQLQuery),
		},
		{
			Name:         "memory",
			Description:  "remembering, recalling, saving or forgetting user preferences and facts",
			Instructions: "You manage the user's stored preferences and facts.",
			Capabilities: memory,
		},
	}}
}

// ParseRoster decodes and validates a YAML roster.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRoster reads a roster file. An empty path yields DefaultRoster.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return DefaultRoster(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// Validate requires at least one worker, unique non-reserved names and at
// least one capability per worker.
func (r *Roster) Validate() error {
	if len(r.Workers) == 0 {
		return fmt.Errorf("roster has no workers")
	}
	seen := make(map[string]bool, len(r.Workers))
	for i, w := range r.Workers {
		switch {
		case w.Name == "":
			return fmt.Errorf("worker %d has no name", i)
		case w.Name == reservedWorkerName:
			return fmt.Errorf("worker name %q is reserved", w.Name)
		case seen[w.Name]:
			return fmt.Errorf("duplicate worker name %q", w.Name)
		case len(w.Capabilities) == 0:
			return fmt.Errorf("worker %q has no capabilities", w.Name)
		}
		seen[w.Name] = true
	}
	return nil
}

// Names returns worker names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Workers))
	for i, w := range r.Workers {
		names[i] = w.Name
	}
	return names
}
