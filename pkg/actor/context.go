package actor

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	// actorKey is the key for storing an actor ID in a context.Context
	actorKey contextKey = iota
)

// ContextWithID adds an actor ID to a context.Context.
func ContextWithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}

// IDFromContext retrieves the actor ID from a context.Context.
// If none is present it returns the zero ID and false.
func IDFromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(actorKey).(ID)
	return id, ok
}
