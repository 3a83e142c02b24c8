package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/store/inmem"
	"github.com/entrhq/switchboard/pkg/types"
)

type failingStore struct{ *inmem.ProfileStore }

func (failingStore) Get(context.Context, string) (map[string]interface{}, error) {
	return nil, errors.New("disk on fire")
}

func history() []*types.Message {
	return []*types.Message{
		types.NewUserMessage("hello"),
		types.NewAssistantMessage("hi").WithAuthor("memory"),
	}
}

func TestInject_EmptyProfileLeavesHistory(t *testing.T) {
	in := NewInjector(inmem.NewProfileStore(), nil)
	h := history()

	got := in.Inject(context.Background(), h, "u1")
	assert.Equal(t, h, got)
}

func TestInject_PrependsProfile(t *testing.T) {
	profiles := inmem.NewProfileStore()
	require.NoError(t, profiles.Upsert(context.Background(), "u1", map[string]interface{}{
		"tone":            "casual",
		"prefers_sources": true,
		"topics":          []interface{}{"go"},
	}))
	in := NewInjector(profiles, nil)
	h := history()

	got := in.Inject(context.Background(), h, "u1")
	require.Len(t, got, 3)
	assert.Len(t, h, 2, "input must not grow")

	first := got[0]
	assert.Equal(t, types.RoleSystem, first.Role)
	assert.Equal(t, InjectedAuthor, first.Author)
	want := prompts.ProfileHeader + "\n" +
		"- prefers_sources: true\n" +
		"- tone: casual\n" +
		"- topics: [\"go\"]\n\n" +
		prompts.ProfileRubric
	assert.Equal(t, want, first.Content)
	assert.Same(t, h[0], got[1])
}

func TestInject_Idempotent(t *testing.T) {
	profiles := inmem.NewProfileStore()
	require.NoError(t, profiles.Upsert(context.Background(), "u1", map[string]interface{}{"tone": "dry"}))
	in := NewInjector(profiles, nil)

	once := in.Inject(context.Background(), history(), "u1")
	twice := in.Inject(context.Background(), once, "u1")

	require.Len(t, twice, len(once))
	if diff := cmp.Diff(once[1:], twice[1:]); diff != "" {
		t.Errorf("history mismatch (-once +twice):\n%s", diff)
	}
	assert.Equal(t, once[0].Content, twice[0].Content)
}

func TestInject_ReplacesStaleProfile(t *testing.T) {
	profiles := inmem.NewProfileStore()
	ctx := context.Background()
	require.NoError(t, profiles.Upsert(ctx, "u1", map[string]interface{}{"tone": "dry"}))
	in := NewInjector(profiles, nil)

	first := in.Inject(ctx, history(), "u1")
	require.NoError(t, profiles.Upsert(ctx, "u1", map[string]interface{}{"tone": "warm"}))
	second := in.Inject(ctx, first, "u1")

	require.Len(t, second, 3)
	assert.Contains(t, second[0].Content, "- tone: warm")
	assert.NotContains(t, second[0].Content, "dry")
}

func TestInject_StoreErrorDegrades(t *testing.T) {
	in := NewInjector(failingStore{}, nil)
	h := history()

	assert.Equal(t, h, in.Inject(context.Background(), h, "u1"))
}

func TestInject_UsersIsolated(t *testing.T) {
	profiles := inmem.NewProfileStore()
	require.NoError(t, profiles.Upsert(context.Background(), "alice", map[string]interface{}{"tone": "formal"}))
	in := NewInjector(profiles, nil)

	assert.Len(t, in.Inject(context.Background(), history(), "bob"), 2)
	assert.Len(t, in.Inject(context.Background(), history(), "alice"), 3)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "x", FormatValue("x"))
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, `{"a":1}`, FormatValue(map[string]interface{}{"a": 1}))
	assert.Equal(t, "3", FormatValue(3))
}
