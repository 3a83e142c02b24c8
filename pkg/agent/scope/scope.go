// Package scope carries per-turn identity through a context.Context.
package scope

import "context"

type contextKey int

const (
	userKey contextKey = iota
	threadKey
)

// AnonymousUser is reported when no user was scoped.
const AnonymousUser = "anonymous"

// WithUser returns a context carrying userID for the duration of one turn.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the scoped user, or AnonymousUser.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userKey).(string); ok && id != "" {
		return id
	}
	return AnonymousUser
}

// WithThread returns a context carrying the conversation thread id.
func WithThread(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadKey, threadID)
}

// ThreadID returns the scoped thread id, or "".
func ThreadID(ctx context.Context) string {
	id, _ := ctx.Value(threadKey).(string)
	return id
}
