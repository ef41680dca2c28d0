package core

import (
	"net/http"
	"strconv"
	"strings"

	"recordstack/internal/policy"
	"recordstack/internal/types"
)

// RateAdmissionMiddleware admits the request against the principal's monthly
// API-call window before the handler runs, and consumes one unit only after
// the handler succeeds. A denied or failed request consumes nothing, so a
// client is never charged for a call that did not do its work.
func (s *Server) RateAdmissionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Ledger == nil || policy.Bypassed(r.URL.Path) || !strings.HasPrefix(r.URL.Path, apiPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		if policy.AnonymousNamespaces[namespaceFromPath(r.URL.Path)] {
			next.ServeHTTP(w, r)
			return
		}

		actor, ok := types.GetActor(r.Context())
		if !ok {
			// Unauthenticated requests were already rejected by policy.
			next.ServeHTTP(w, r)
			return
		}
		if actor.IsAdmin {
			next.ServeHTTP(w, r)
			return
		}

		admission, err := s.Ledger.AdmitAPICall(r.Context(), actor.ID)
		if err != nil {
			Error(w, r, err)
			return
		}

		remaining := admission.Plan.MonthlyAPILimit - admission.Used
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(admission.Plan.MonthlyAPILimit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rc, r)

		if rc.statusCode < 400 {
			s.Ledger.ConsumeAPICall(r.Context(), actor.ID, admission)
		}
	})
}
