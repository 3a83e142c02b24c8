package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/switchboard/pkg/agent/scope"
	"github.com/entrhq/switchboard/pkg/store/inmem"
)

func TestRememberAndRecall(t *testing.T) {
	profiles := inmem.NewProfileStore()
	remember := NewRememberTool(profiles)
	recall := NewRecallTool(profiles)
	ctx := scope.WithUser(context.Background(), "u1")

	tests := []struct {
		name     string
		args     string
		saved    string
		recalled string
	}{
		{"string", `{"key":"tone","value":"concise"}`, "Saved: tone = concise", "concise"},
		{"bool", `{"key":"prefers_sources","value":true}`, "Saved: prefers_sources = true", "true"},
		{"number", `{"key":"age","value":41}`, "Saved: age = 41", "41"},
		{"list", `{"key":"topics","value":["go","sql"]}`, `Saved: topics = ["go","sql"]`, `["go","sql"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := remember.Execute(ctx, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.saved, out)

			var key struct {
				Key string `json:"key"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.args), &key))
			got, err := recall.Execute(ctx, json.RawMessage(`{"key":"`+key.Key+`"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.recalled, got)
		})
	}
}

func TestRecall_Missing(t *testing.T) {
	recall := NewRecallTool(inmem.NewProfileStore())
	out, err := recall.Execute(context.Background(), json.RawMessage(`{"key":"tone"}`))
	require.NoError(t, err)
	assert.Equal(t, "No value saved for 'tone'.", out)
}

func TestScopedToUser(t *testing.T) {
	profiles := inmem.NewProfileStore()
	remember := NewRememberTool(profiles)
	recall := NewRecallTool(profiles)

	_, err := remember.Execute(scope.WithUser(context.Background(), "alice"), json.RawMessage(`{"key":"tone","value":"formal"}`))
	require.NoError(t, err)

	out, err := recall.Execute(scope.WithUser(context.Background(), "bob"), json.RawMessage(`{"key":"tone"}`))
	require.NoError(t, err)
	assert.Equal(t, "No value saved for 'tone'.", out)

	stored, err := profiles.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "formal", stored["tone"])
}

func TestNilStore(t *testing.T) {
	out, err := NewRememberTool(nil).Execute(context.Background(), json.RawMessage(`{"key":"k","value":1}`))
	require.NoError(t, err)
	assert.Equal(t, "Memory store not initialized.", out)

	out, err = NewRecallTool(nil).Execute(context.Background(), json.RawMessage(`{"key":"k"}`))
	require.NoError(t, err)
	assert.Equal(t, "Memory store not initialized.", out)
}

func TestRemember_InvalidArguments(t *testing.T) {
	remember := NewRememberTool(inmem.NewProfileStore())

	_, err := remember.Execute(context.Background(), json.RawMessage(`{"value":1}`))
	assert.Error(t, err)
	_, err = remember.Execute(context.Background(), json.RawMessage(`{"key":"k"}`))
	assert.Error(t, err)
	_, err = remember.Execute(context.Background(), json.RawMessage(`"nonsense"`))
	assert.Error(t, err)
}
