package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

func newProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	s, err := NewProfileStore(filepath.Join(t.TempDir(), "nested", "profile.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCheckpointStore(t *testing.T) *CheckpointStore {
	t.Helper()
	s, err := NewCheckpointStore(filepath.Join(t.TempDir(), "graph_state.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProfileStore_UnknownUserIsEmpty(t *testing.T) {
	s := newProfileStore(t)

	got, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProfileStore_LastWriteWins(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "u1", map[string]interface{}{"tone": "formal", "name": "Ada"}))
	require.NoError(t, s.Upsert(ctx, "u1", map[string]interface{}{"tone": "casual"}))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"tone": "casual", "name": "Ada"}, got)
}

func TestProfileStore_UsersAreIsolated(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "alice", map[string]interface{}{"tone": "formal"}))
	require.NoError(t, s.Upsert(ctx, "bob", map[string]interface{}{"tone": "casual"}))

	alice, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "formal", alice["tone"])
}

func TestProfileStore_RoundTrip(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	values := map[string]interface{}{
		"topics":          []interface{}{"go", "sqlite"},
		"prefs":           map[string]interface{}{"summary_style": "bullets"},
		"prefers_sources": true,
		"age":             42,
	}
	require.NoError(t, s.Upsert(ctx, "u1", values))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)

	want := map[string]interface{}{
		"topics":          []interface{}{"go", "sqlite"},
		"prefs":           map[string]interface{}{"summary_style": "bullets"},
		"prefers_sources": "true",
		"age":             "42",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.sqlite3")
	ctx := context.Background()

	s, err := NewProfileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "u1", map[string]interface{}{"tone": "dry"}))
	require.NoError(t, s.Close())

	reopened, err := NewProfileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "dry", got["tone"])
}

func TestProfileStore_ConcurrentWriters(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, "u1", map[string]interface{}{
				fmt.Sprintf("k%d", i): i,
				"last":                 i,
			}))
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 9)
	assert.Contains(t, []string{"0", "1", "2", "3", "4", "5", "6", "7"}, got["last"])
}

func TestCheckpointStore_NotFound(t *testing.T) {
	s := newCheckpointStore(t)

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckpointStore_SaveLoad(t *testing.T) {
	s := newCheckpointStore(t)
	ctx := context.Background()

	call := types.ToolCall{ID: "c1", Name: "recall", Arguments: json.RawMessage(`{"key":"tone"}`)}
	cp := &types.Checkpoint{
		ThreadID: "t1",
		Messages: types.Conversation{
			types.NewUserMessage("hello"),
			types.NewToolCallMessage("", call).WithAuthor("memory"),
			types.NewAssistantMessage("hi there").WithAuthor("memory"),
		},
	}
	require.NoError(t, s.Save(ctx, cp))
	assert.Equal(t, int64(1), cp.Version)

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.False(t, got.UpdatedAt.IsZero())
	if diff := cmp.Diff(cp.Messages, got.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	cp.Messages = append(cp.Messages, types.NewUserMessage("again"))
	require.NoError(t, s.Save(ctx, cp))

	got, err = s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Messages, 4)
}

func TestCheckpointStore_RejectsMissingThread(t *testing.T) {
	s := newCheckpointStore(t)
	assert.Error(t, s.Save(context.Background(), &types.Checkpoint{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestCheckpointStore_ConcurrentThreadsAreIsolated(t *testing.T) {
	s := newCheckpointStore(t)
	ctx := context.Background()

	const threads, turns = 16, 5
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			threadID := fmt.Sprintf("t%02d", i)
			for j := 0; j < turns; j++ {
				cp, err := s.Load(ctx, threadID)
				if errors.Is(err, store.ErrNotFound) {
					cp, err = &types.Checkpoint{ThreadID: threadID}, nil
				}
				if !assert.NoError(t, err) {
					return
				}
				cp.Messages = append(cp.Messages, types.NewUserMessage(fmt.Sprintf("%s turn %d", threadID, j)))
				if !assert.NoError(t, s.Save(ctx, cp)) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < threads; i++ {
		threadID := fmt.Sprintf("t%02d", i)
		got, err := s.Load(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, int64(turns), got.Version, threadID)

		want := make([]string, turns)
		for j := range want {
			want[j] = fmt.Sprintf("%s turn %d", threadID, j)
		}
		contents := make([]string, len(got.Messages))
		for j, m := range got.Messages {
			contents[j] = m.Content
		}
		if diff := cmp.Diff(want, contents); diff != "" {
			t.Errorf("%s history mismatch (-want +got):\n%s", threadID, diff)
		}
	}
}
