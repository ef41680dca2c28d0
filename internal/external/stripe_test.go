package external

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

func testStripeClient(srvURL string) *StripeClient {
	base := NewBaseClient(&http.Client{}, "stripe-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		types.ErrCodeUpstreamBilling,
		WithSleepFunc(func(time.Duration) {}))
	return NewStripeClientWithBase(base, StripeClientConfig{
		SecretKey: "sk_test_123",
		BaseURL:   srvURL,
		Logger:    testLogger(),
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(raw))
		io.WriteString(w, `{"id":"cs_123","url":"https://checkout.stripe.com/pay/cs_123"}`)
	}))
	defer srv.Close()

	session, err := testStripeClient(srv.URL).CreateCheckoutSession(context.Background(), CheckoutParams{
		PriceID:           "price_pro",
		CustomerEmail:     "casey@example.com",
		ClientReferenceID: "user-1",
		Plan:              types.PlanPro,
		SuccessURL:        "https://app.example.com/billing/success",
		CancelURL:         "https://app.example.com/billing/cancelled",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/checkout/sessions", gotPath)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_123", session.URL)

	assert.Equal(t, "subscription", gotForm.Get("mode"))
	assert.Equal(t, "price_pro", gotForm.Get("line_items[0][price]"))
	assert.Equal(t, "user-1", gotForm.Get("client_reference_id"))
	assert.Equal(t, "user-1", gotForm.Get("metadata[user_id]"))
	assert.Equal(t, "PRO", gotForm.Get("metadata[plan]"))

	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_test_123:"))
	assert.Equal(t, expectedAuth, gotAuth)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(raw))
		io.WriteString(w, `{"id":"sub_1"}`)
	}))
	defer srv.Close()

	err := testStripeClient(srv.URL).CancelAtPeriodEnd(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "/v1/subscriptions/sub_1", gotPath)
	assert.Equal(t, "true", gotForm.Get("cancel_at_period_end"))
}

func TestStripeErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"No such subscription"}}`)
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, `{"error":{"type":"card_error","message":"Your card was declined"}}`)
	}))
	defer srv.Close()

	client := testStripeClient(srv.URL)

	err := client.CancelAtPeriodEnd(context.Background(), "missing")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFound, appErr.Code)
	assert.Equal(t, "No such subscription", appErr.Message)

	err = client.CancelAtPeriodEnd(context.Background(), "sub_2")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamBilling, appErr.Code)
}
