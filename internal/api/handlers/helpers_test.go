package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

func testActor() types.Actor {
	return types.Actor{ID: "user-1", Email: "casey@example.com", IsActive: true, EmailVerified: true}
}

func proPlan() *types.Plan {
	return &types.Plan{
		Name:              types.PlanPro,
		AllowedNamespaces: []string{types.NamespaceWildcard},
		MonthlyAPILimit:   100_000,
		MaxRecords:        100_000,
		CanCreateRecords:  true,
		CanUpdateRecords:  true,
		CanDeleteRecords:  true,
		PageSize:          25,
		MaxPageSize:       100,
	}
}

// newTestRouter mounts the handler's routes behind middleware that plants
// the given actor and plan on the context, mirroring what the auth and
// policy middleware do in production.
func newTestRouter(actor types.Actor, plan *types.Plan, register func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := types.WithActor(req.Context(), actor)
			if plan != nil {
				ctx = types.WithPlan(ctx, plan)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decodeBody(t, rec, &body)
	code, _ := body["error_code"].(string)
	return code
}

// quotaRecorder implements RecordQuotaEnforcer, optionally denying.
type quotaRecorder struct {
	calls    int
	incoming int
	err      error
}

func (q *quotaRecorder) EnforceRecordQuota(_ context.Context, _ string, _ *types.Plan, incoming int) error {
	q.calls++
	q.incoming += incoming
	return q.err
}
