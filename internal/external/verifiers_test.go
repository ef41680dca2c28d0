package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, ts time.Time, payload []byte) string {
	t.Helper()
	timestamp := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func verifierAt(now time.Time) *StripeWebhookVerifier {
	v := NewStripeWebhookVerifier(webhookSecret)
	v.now = func() time.Time { return now }
	return v
}

func TestWebhookVerify(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	v := verifierAt(now)
	err := v.Verify(payload, signPayload(t, webhookSecret, now, payload))
	assert.NoError(t, err)
}

func TestWebhookVerify_WrongSecret(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	v := verifierAt(now)
	err := v.Verify(payload, signPayload(t, "whsec_other", now, payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestWebhookVerify_TamperedPayload(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	v := verifierAt(now)
	header := signPayload(t, webhookSecret, now, []byte(`{"id":"evt_1"}`))
	err := v.Verify([]byte(`{"id":"evt_2"}`), header)
	assert.Error(t, err)
}

func TestWebhookVerify_StaleTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	v := verifierAt(now)
	header := signPayload(t, webhookSecret, now.Add(-6*time.Minute), payload)
	err := v.Verify(payload, header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance")
}

func TestWebhookVerify_MalformedHeader(t *testing.T) {
	v := verifierAt(time.Now())
	for _, header := range []string{"", "t=123", "v1=abc", "garbage"} {
		assert.Error(t, v.Verify([]byte("{}"), header), "header %q", header)
	}
}

func TestWebhookVerify_SecondSignatureAccepted(t *testing.T) {
	// During secret rotation Stripe sends multiple v1 entries; any match
	// passes.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	v := verifierAt(now)
	header := signPayload(t, webhookSecret, now, payload) + ",v1=deadbeef"
	assert.NoError(t, v.Verify(payload, header))
}
