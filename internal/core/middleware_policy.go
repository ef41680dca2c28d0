package core

import (
	"net/http"
	"strings"

	"recordstack/internal/policy"
	"recordstack/internal/types"
)

// apiPrefix is the path prefix under which policy, rate admission and the
// pagination envelope apply.
const apiPrefix = "/api/v1/"

// namespaceFromPath extracts the entity namespace from an API path:
// /api/v1/customer-profiles/123 -> "customer-profiles".
func namespaceFromPath(path string) string {
	if !strings.HasPrefix(path, apiPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, apiPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// PolicyMiddleware runs the access policy stages against the resolved actor
// and plan. It resolves the principal's plan once and stores it in the
// context for the handlers. Bypass-prefixed paths skip evaluation entirely.
func (s *Server) PolicyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.Bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		namespace := namespaceFromPath(r.URL.Path)
		if policy.AnonymousNamespaces[namespace] {
			next.ServeHTTP(w, r)
			return
		}

		req := &policy.Request{
			Namespace: namespace,
			Method:    r.Method,
		}

		actor, ok := types.GetActor(r.Context())
		if ok {
			req.Actor = &actor
		}

		ctx := r.Context()
		if ok && s.Profiles != nil && s.Plans != nil {
			profile, err := s.Profiles.GetByUserID(ctx, actor.ID)
			if err != nil {
				// A broken profile lookup must not degrade into a
				// planless evaluation.
				Error(w, r, err)
				return
			}
			if profile.PlanName != nil {
				plan, planErr := s.Plans.Resolve(ctx, *profile.PlanName)
				if planErr != nil {
					Error(w, r, planErr)
					return
				}
				req.Plan = plan
				ctx = types.WithPlan(ctx, plan)
			}
		}

		if err := s.Policy.Evaluate(req); err != nil {
			Error(w, r, err)
			return
		}

		// API requests from unverified accounts are refused here; browser
		// routes redirect instead (VerificationGateMiddleware).
		if ok && !actor.IsAdmin && !actor.EmailVerified {
			WriteError(w, r, types.ErrCodeEmailNotVerified, "email address is not verified")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VerificationGateMiddleware redirects logged-in browser sessions with an
// unverified email to the verification-pending page. API paths and the
// exempt browser paths pass through.
func (s *Server) VerificationGateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !policy.RequiresVerifiedEmail(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		actor, ok := types.GetActor(r.Context())
		if ok && !actor.IsAdmin && !actor.EmailVerified {
			http.Redirect(w, r, "/accounts/verification-pending", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
