package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"recordstack/internal/types"
)

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify([]byte, string) error { return f.err }

type fakeApplier struct {
	events []*stripe.Event
	err    error
}

func (f *fakeApplier) HandleEvent(_ context.Context, event *stripe.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func postWebhook(router http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func webhookRouter(verifier *fakeVerifier, applier *fakeApplier) *chi.Mux {
	r := chi.NewRouter()
	NewStripeWebhookHandler(verifier, applier, testLogger()).RegisterRoutes(r)
	return r
}

func TestWebhookMissingSignature(t *testing.T) {
	applier := &fakeApplier{}
	router := webhookRouter(&fakeVerifier{}, applier)

	rec := postWebhook(router, `{"id":"evt_1"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", errorCode(t, rec))
	assert.Empty(t, applier.events)
}

func TestWebhookBadSignature(t *testing.T) {
	verifier := &fakeVerifier{err: types.NewAppError(types.ErrCodeInvalidToken,
		"webhook signature mismatch", nil)}
	applier := &fakeApplier{}
	router := webhookRouter(verifier, applier)

	rec := postWebhook(router, `{"id":"evt_1"}`, "t=1,v1=bad")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.events)
}

func TestWebhookVerifiedEventApplied(t *testing.T) {
	applier := &fakeApplier{}
	router := webhookRouter(&fakeVerifier{}, applier)

	rec := postWebhook(router,
		`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`,
		"t=1,v1=ok")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, applier.events, 1)
	assert.Equal(t, "evt_1", applier.events[0].ID)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, applier.events[0].Type)
}

func TestWebhookApplierFailureStillAcknowledged(t *testing.T) {
	applier := &fakeApplier{err: errors.New("db down")}
	router := webhookRouter(&fakeVerifier{}, applier)

	rec := postWebhook(router, `{"id":"evt_2","type":"invoice.payment_succeeded"}`, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookMalformedJSON(t *testing.T) {
	applier := &fakeApplier{}
	router := webhookRouter(&fakeVerifier{}, applier)

	rec := postWebhook(router, `{not json`, "t=1,v1=ok")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.events)
}
