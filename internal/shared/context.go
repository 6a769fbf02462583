package shared

import "context"

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	UserID     int64
	SchoolCode string
}

// Known returns true when the actor has been authenticated.
func (a Actor) Known() bool {
	return a.UserID > 0
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
