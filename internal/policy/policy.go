// Package policy implements the request access policy engine: an explicit,
// ordered list of stages evaluated against the acting principal, the request
// namespace, and the HTTP method. The first failing stage decides the
// response; later stages never run.
package policy

import (
	"strings"

	"recordstack/internal/types"
)

// BypassPrefixes lists URL path prefixes exempt from policy evaluation
// entirely. These surfaces carry their own access control (admin auth,
// account flows, webhook signature verification) or must stay reachable
// for operations.
var BypassPrefixes = []string{"/admin", "/accounts", "/static", "/health", "/metrics", "/webhooks"}

// Request is the policy engine's view of an incoming call.
type Request struct {
	Actor     *types.Actor
	Plan      *types.Plan
	Namespace string // e.g. "customer-profiles", extracted from the URL path
	Method    string // HTTP method
}

// Stage is one named policy check. Returning nil admits the request to the
// next stage. PlanScoped stages only run for the plan-gated entity
// namespaces; other API surfaces carry their own checks.
type Stage struct {
	Name       string
	PlanScoped bool
	Check      func(req *Request) error
}

// AnonymousNamespaces are API namespaces reachable without authentication.
var AnonymousNamespaces = map[string]bool{
	"auth":  true,
	"blogs": true,
}

// planGatedNamespaces are the entity namespaces whose access is granted per
// plan tier. Other namespaces (objects, system-logs, account, billing,
// plans) skip the plan-scoped stages and rely on their own handler checks.
var planGatedNamespaces = map[string]bool{
	"customer-profiles":  true,
	"product-catalog":    true,
	"order-transactions": true,
	"usage-analytics":    true,
}

// NamespaceGated reports whether plan-tier gating applies to the namespace.
func NamespaceGated(namespace string) bool {
	return planGatedNamespaces[namespace]
}

// Engine evaluates its stages in declaration order.
type Engine struct {
	stages []Stage
}

// NewEngine builds the standard stage pipeline. The order is load-bearing:
// authentication before account state, account state before namespace, so
// failures report the most fundamental problem first.
func NewEngine() *Engine {
	return &Engine{stages: []Stage{
		{Name: "authenticated", Check: checkAuthenticated},
		{Name: "active_account", Check: checkActiveAccount},
		{Name: "namespace_allowed", PlanScoped: true, Check: checkNamespaceAllowed},
		{Name: "method_allowed", PlanScoped: true, Check: checkMethodAllowed},
		{Name: "capability_allowed", PlanScoped: true, Check: checkCapabilityAllowed},
	}}
}

// Bypassed reports whether the path skips policy evaluation.
func Bypassed(path string) bool {
	for _, prefix := range BypassPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Evaluate runs the stages in order and returns the first failure, or nil
// when every stage admits the request. Administrators bypass every stage
// past authentication.
func (e *Engine) Evaluate(req *Request) error {
	for _, stage := range e.stages {
		if stage.Name != "authenticated" && req.Actor != nil && req.Actor.IsAdmin {
			continue
		}
		if stage.PlanScoped && !NamespaceGated(req.Namespace) {
			continue
		}
		if err := stage.Check(req); err != nil {
			return err
		}
	}
	return nil
}

// Stages returns the stage names in evaluation order, for diagnostics.
func (e *Engine) Stages() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name
	}
	return names
}

func checkAuthenticated(req *Request) error {
	if req.Actor == nil || req.Actor.ID == "" {
		return types.NewAppError(types.ErrCodeAuthRequired, "authentication required", nil)
	}
	return nil
}

func checkActiveAccount(req *Request) error {
	if !req.Actor.IsActive {
		return types.NewAppError(types.ErrCodeAccountInactive, "account is deactivated", nil)
	}
	return nil
}

func checkNamespaceAllowed(req *Request) error {
	if req.Plan == nil {
		return types.NewAppError(types.ErrCodeNoPlanAssigned, "no plan is assigned to this account", nil)
	}
	if !req.Plan.AllowsNamespace(req.Namespace) {
		return types.NewAppErrorWithDetails(types.ErrCodeNamespaceNotAllowed,
			"plan does not grant access to this namespace", nil, map[string]any{
				"current_plan": string(req.Plan.Name),
				"namespace":    req.Namespace,
			})
	}
	return nil
}

// readMethods are the HTTP methods a read-only plan may use.
var readMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"OPTIONS": true,
}

func checkMethodAllowed(req *Request) error {
	if readMethods[req.Method] {
		return nil
	}
	// The free tier is read-only on the API regardless of its capability
	// flags; paid tiers are governed by the per-capability gate.
	if req.Plan.Name == types.PlanFree {
		return types.NewAppErrorWithDetails(types.ErrCodeReadOnlyPlan,
			"plan allows read-only API access", nil, map[string]any{
				"current_plan": string(req.Plan.Name),
			})
	}
	return nil
}

func checkCapabilityAllowed(req *Request) error {
	var allowed bool
	var action string
	switch req.Method {
	case "GET", "HEAD", "OPTIONS":
		return nil
	case "POST":
		allowed, action = req.Plan.CanCreateRecords, "create"
	case "PUT", "PATCH":
		allowed, action = req.Plan.CanUpdateRecords, "update"
	case "DELETE":
		allowed, action = req.Plan.CanDeleteRecords, "delete"
	default:
		return types.NewAppError(types.ErrCodeValidation, "unsupported HTTP method: "+req.Method, nil)
	}
	if !allowed {
		return types.NewAppErrorWithDetails(types.ErrCodeCapabilityDenied,
			"plan does not permit this action", nil, map[string]any{
				"current_plan": string(req.Plan.Name),
				"action":       action,
			})
	}
	return nil
}
