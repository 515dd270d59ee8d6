package models

import "context"

type actorContextKey struct{}

// Actor is the authenticated caller, as asserted by a verified bearer token.
type Actor struct {
	UserId      string
	Email       string
	IsModerator bool
}

// WithActor attaches the authenticated caller to a context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor retrieves the authenticated caller from context, or nil if absent.
func GetActor(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
