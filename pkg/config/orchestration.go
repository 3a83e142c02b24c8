package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDOrchestration is the identifier for the orchestration section
	SectionIDOrchestration = "orchestration"
)

// OrchestrationSection bounds the supervisor and worker loops.
type OrchestrationSection struct {
	MaxWorkerIterations int
	MaxDispatches       int
	ModelTimeout        time.Duration
	CapabilityTimeout   time.Duration
	RosterFile          string // optional YAML roster; empty uses the built-in roster
	mu                  sync.RWMutex
}

// NewOrchestrationSection creates an orchestration section with defaults.
func NewOrchestrationSection() *OrchestrationSection {
	s := &OrchestrationSection{}
	s.Reset()
	return s
}

func (s *OrchestrationSection) ID() string    { return SectionIDOrchestration }
func (s *OrchestrationSection) Title() string { return "Orchestration" }
func (s *OrchestrationSection) Description() string {
	return "Loop limits and per-call timeouts for the supervisor and its workers."
}

func (s *OrchestrationSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"max_worker_iterations": s.MaxWorkerIterations,
		"max_dispatches":        s.MaxDispatches,
		"model_timeout":         s.ModelTimeout.String(),
		"capability_timeout":    s.CapabilityTimeout.String(),
		"roster_file":           s.RosterFile,
	}
}

func (s *OrchestrationSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := intValue(data["max_worker_iterations"]); ok {
		s.MaxWorkerIterations = v
	}
	if v, ok := intValue(data["max_dispatches"]); ok {
		s.MaxDispatches = v
	}
	if raw, present := data["model_timeout"]; present {
		d, ok := durationValue(raw)
		if !ok {
			return fmt.Errorf("invalid model_timeout %v", raw)
		}
		s.ModelTimeout = d
	}
	if raw, present := data["capability_timeout"]; present {
		d, ok := durationValue(raw)
		if !ok {
			return fmt.Errorf("invalid capability_timeout %v", raw)
		}
		s.CapabilityTimeout = d
	}
	if v, ok := data["roster_file"].(string); ok {
		s.RosterFile = v
	}
	return nil
}

func (s *OrchestrationSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.MaxWorkerIterations <= 0 {
		return fmt.Errorf("max_worker_iterations must be positive")
	}
	if s.MaxDispatches <= 0 {
		return fmt.Errorf("max_dispatches must be positive")
	}
	if s.ModelTimeout <= 0 || s.CapabilityTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func (s *OrchestrationSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MaxWorkerIterations = 10
	s.MaxDispatches = 12
	s.ModelTimeout = 120 * time.Second
	s.CapabilityTimeout = 60 * time.Second
	s.RosterFile = ""
}

// Limits returns the loop bounds and timeouts.
func (s *OrchestrationSection) Limits() (iterations, dispatches int, model, capability time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxWorkerIterations, s.MaxDispatches, s.ModelTimeout, s.CapabilityTimeout
}

// GetRosterFile returns the roster path, possibly empty.
func (s *OrchestrationSection) GetRosterFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RosterFile
}
