// Package memory prepends a user's stored profile to a conversation before
// each oracle call.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/logging"
	"github.com/entrhq/switchboard/pkg/store"
	"github.com/entrhq/switchboard/pkg/types"
)

// InjectedAuthor tags the synthetic profile message so later injections can
// replace it instead of stacking.
const InjectedAuthor = "profile_memory"

// Injector reads the profile on every call; nothing is cached.
type Injector struct {
	profiles store.ProfileStore
	logger   *logging.Logger
}

// NewInjector creates an injector. A nil store injects nothing.
func NewInjector(profiles store.ProfileStore, logger *logging.Logger) *Injector {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Injector{profiles: profiles, logger: logger}
}

// Inject returns history with a fresh profile message at the front. The
// input slice is never modified. When the profile is empty or cannot be
// read, history is returned without any profile message.
func (in *Injector) Inject(ctx context.Context, history []*types.Message, userID string) []*types.Message {
	base := stripInjected(history)
	if in == nil || in.profiles == nil {
		return base
	}

	profile, err := in.profiles.Get(ctx, userID)
	if err != nil {
		in.logger.Warnf("profile read failed for user %s: %v", userID, err)
		return base
	}
	if len(profile) == 0 {
		return base
	}

	msg := types.NewSystemMessage(Render(profile))
	msg.Author = InjectedAuthor

	out := make([]*types.Message, 0, len(base)+1)
	out = append(out, msg)
	return append(out, base...)
}

// Render formats a profile as the injected system text, keys sorted.
func Render(profile map[string]interface{}) string {
	return prompts.FormatProfile(Lines(profile))
}

// Lines renders one "- key: value" line per entry, keys sorted.
func Lines(profile map[string]interface{}) []string {
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("- %s: %s", k, FormatValue(profile[k]))
	}
	return lines
}

// FormatValue renders a profile value for display: strings verbatim,
// everything else as JSON.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return "null"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// stripInjected returns history without earlier profile messages. It
// returns the input itself when there is nothing to remove.
func stripInjected(history []*types.Message) []*types.Message {
	n := 0
	for _, m := range history {
		if isInjected(m) {
			n++
		}
	}
	if n == 0 {
		return history
	}
	out := make([]*types.Message, 0, len(history)-n)
	for _, m := range history {
		if !isInjected(m) {
			out = append(out, m)
		}
	}
	return out
}

func isInjected(m *types.Message) bool {
	return m != nil && m.Role == types.RoleSystem && m.Author == InjectedAuthor
}
