package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"recordstack/internal/types"
)

// webhookTolerance is the maximum accepted age of a signed webhook payload.
// Older timestamps are rejected to blunt replay.
const webhookTolerance = 5 * time.Minute

// StripeWebhookVerifier checks the Stripe-Signature header against the
// endpoint's signing secret. The header carries a unix timestamp and one or
// more v1 signatures: HMAC-SHA256 over "<timestamp>.<payload>".
type StripeWebhookVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: []byte(secret), now: time.Now}
}

// Verify returns nil when at least one v1 signature matches and the
// timestamp is within tolerance.
func (v *StripeWebhookVerifier) Verify(payload []byte, sigHeader string) error {
	var timestamp string
	var candidates []string

	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return types.NewAppError(types.ErrCodeInvalidToken,
			"malformed webhook signature header", nil)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return types.NewAppError(types.ErrCodeInvalidToken,
			"malformed webhook signature timestamp", err)
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return types.NewAppError(types.ErrCodeInvalidToken,
			"webhook signature timestamp outside tolerance", nil)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeInvalidToken,
		"webhook signature mismatch", nil)
}
