package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recordstack/internal/types"
)

// tokenPrefix marks access tokens issued by this service.
const tokenPrefix = "rsk_"

// AccessTokenCodec issues and verifies stateless HMAC-signed access tokens.
// A token carries the user ID and an expiry; account state (active, admin,
// verified) is looked up live on every request, so deactivation takes effect
// immediately despite the token being stateless.
type AccessTokenCodec struct {
	key   []byte
	ttl   time.Duration
	clock types.Clock
}

// NewAccessTokenCodec builds a codec over the session signing key.
func NewAccessTokenCodec(key string, ttl time.Duration, clock types.Clock) *AccessTokenCodec {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AccessTokenCodec{key: []byte(key), ttl: ttl, clock: clock}
}

// Issue creates a signed token for the user.
func (c *AccessTokenCodec) Issue(userID string) string {
	expires := c.clock.Now().Add(c.ttl).Unix()
	payload := userID + "|" + strconv.FormatInt(expires, 10)
	sig := c.sign(payload)
	return tokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(payload+"|"+sig))
}

// Parse verifies the signature and expiry and returns the user ID.
func (c *AccessTokenCodec) Parse(token string) (string, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return "", invalidTokenErr(nil)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", invalidTokenErr(err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 3 {
		return "", invalidTokenErr(nil)
	}
	userID, expiresRaw, sig := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(c.sign(userID+"|"+expiresRaw)), []byte(sig)) {
		return "", invalidTokenErr(nil)
	}

	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return "", invalidTokenErr(err)
	}
	if c.clock.Now().Unix() >= expires {
		return "", types.NewAppError(types.ErrCodeInvalidToken, "token has expired", nil)
	}
	return userID, nil
}

func (c *AccessTokenCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	_, _ = fmt.Fprint(mac, payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func invalidTokenErr(err error) *types.AppError {
	return types.NewAppError(types.ErrCodeInvalidToken, "token is malformed or has been tampered with", err)
}
