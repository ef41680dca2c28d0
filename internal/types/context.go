package types

import "context"

// Actor represents the authenticated principal performing a request.
// It carries exactly what the identity provider supplies: identity plus the
// administrator and active flags. Plan and quota state are resolved separately
// through the quota ledger.
type Actor struct {
	ID            string
	Email         string
	IsAdmin       bool
	IsActive      bool
	EmailVerified bool
}

// Context keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
	planKey      contextKey = "plan"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithPlan stores the resolved Plan in the context. Set by the policy
// middleware after plan resolution so handlers do not resolve it again.
func WithPlan(ctx context.Context, plan *Plan) context.Context {
	return context.WithValue(ctx, planKey, plan)
}

// GetPlan retrieves the resolved Plan from the context.
func GetPlan(ctx context.Context) (*Plan, bool) {
	plan, ok := ctx.Value(planKey).(*Plan)
	return plan, ok && plan != nil
}
