package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	const finish = "FINISH"

	tests := []struct {
		name    string
		from    state
		ev      event
		want    state
		wantErr bool
	}{
		{"supervisor to worker", state{stage: StageSupervisor}, event{kind: eventDecision, next: "rag"}, state{stage: StageWorker, worker: "rag"}, false},
		{"supervisor to terminal", state{stage: StageSupervisor}, event{kind: eventDecision, next: finish}, state{stage: StageTerminal}, false},
		{"worker back to supervisor", state{stage: StageWorker, worker: "rag"}, event{kind: eventWorkerDone}, state{stage: StageSupervisor}, false},
		{"supervisor without choice", state{stage: StageSupervisor}, event{kind: eventDecision}, state{}, true},
		{"supervisor on worker done", state{stage: StageSupervisor}, event{kind: eventWorkerDone}, state{}, true},
		{"worker on decision", state{stage: StageWorker, worker: "rag"}, event{kind: eventDecision, next: "memory"}, state{}, true},
		{"terminal is final", state{stage: StageTerminal}, event{kind: eventWorkerDone}, state{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transition(tt.from, tt.ev, finish)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.from, got, "state unchanged on error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "supervisor", StageSupervisor.String())
	assert.Equal(t, "worker", StageWorker.String())
	assert.Equal(t, "terminal", StageTerminal.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
