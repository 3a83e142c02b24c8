package graph

import "fmt"

// Stage is a node of the orchestration graph.
type Stage int

const (
	StageSupervisor Stage = iota
	StageWorker
	StageTerminal
)

func (s Stage) String() string {
	switch s {
	case StageSupervisor:
		return "supervisor"
	case StageWorker:
		return "worker"
	case StageTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// state is the dispatcher position. worker is set only in StageWorker.
type state struct {
	stage  Stage
	worker string
}

type eventKind int

const (
	// eventDecision carries the supervisor's choice in next.
	eventDecision eventKind = iota
	// eventWorkerDone means the current worker appended its final message.
	eventWorkerDone
)

type event struct {
	kind eventKind
	next string
}

// transition is the whole edge set of the graph:
//
//	supervisor --decision(worker)--> worker
//	supervisor --decision(FINISH)--> terminal
//	worker     --done------------->  supervisor
func transition(s state, e event, terminate string) (state, error) {
	switch {
	case s.stage == StageSupervisor && e.kind == eventDecision && e.next == terminate:
		return state{stage: StageTerminal}, nil
	case s.stage == StageSupervisor && e.kind == eventDecision && e.next != "":
		return state{stage: StageWorker, worker: e.next}, nil
	case s.stage == StageWorker && e.kind == eventWorkerDone:
		return state{stage: StageSupervisor}, nil
	default:
		return s, fmt.Errorf("no transition from %s on event %d", s.stage, e.kind)
	}
}
