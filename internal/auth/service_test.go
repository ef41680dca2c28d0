package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

type fakeProfileStore struct {
	byID    map[string]*types.UserProfile
	byEmail map[string]*types.UserProfile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		byID:    make(map[string]*types.UserProfile),
		byEmail: make(map[string]*types.UserProfile),
	}
}

func (s *fakeProfileStore) Create(_ context.Context, p *types.UserProfile) error {
	if _, exists := s.byEmail[p.Email]; exists {
		return types.NewAppError(types.ErrCodeDuplicateResource, "an account with this email already exists", nil)
	}
	s.byID[p.UserID] = p
	s.byEmail[p.Email] = p
	return nil
}

func (s *fakeProfileStore) GetByUserID(_ context.Context, userID string) (*types.UserProfile, error) {
	p, ok := s.byID[userID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	return p, nil
}

func (s *fakeProfileStore) GetByEmail(_ context.Context, email string) (*types.UserProfile, error) {
	p, ok := s.byEmail[email]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	return p, nil
}

func (s *fakeProfileStore) MarkEmailVerified(_ context.Context, userID string) error {
	p, ok := s.byID[userID]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	p.IsEmailVerified = true
	return nil
}

func (s *fakeProfileStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	p, ok := s.byID[userID]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	p.PasswordHash = hash
	return nil
}

type storedToken struct {
	userID    string
	used      bool
	createdAt time.Time
}

type fakeTokenStore struct {
	verification map[string]*storedToken
	reset        map[string]*storedToken
	now          time.Time
}

func newFakeTokenStore(now time.Time) *fakeTokenStore {
	return &fakeTokenStore{
		verification: make(map[string]*storedToken),
		reset:        make(map[string]*storedToken),
		now:          now,
	}
}

func (s *fakeTokenStore) CreateVerificationToken(_ context.Context, t *types.EmailVerificationToken) error {
	s.verification[t.Token] = &storedToken{userID: t.UserID, createdAt: s.now}
	return nil
}

func (s *fakeTokenStore) CreateResetToken(_ context.Context, t *types.PasswordResetToken) error {
	s.reset[t.Token] = &storedToken{userID: t.UserID, createdAt: s.now}
	return nil
}

func redeem(tokens map[string]*storedToken, token string, maxAge time.Duration, now time.Time) (string, error) {
	st, ok := tokens[token]
	if !ok || st.used || now.Sub(st.createdAt) > maxAge {
		return "", types.NewAppError(types.ErrCodeInvalidToken, "token is invalid, expired, or already used", nil)
	}
	st.used = true
	return st.userID, nil
}

func (s *fakeTokenStore) RedeemVerificationToken(_ context.Context, token string, maxAge time.Duration) (string, error) {
	return redeem(s.verification, token, maxAge, s.now)
}

func (s *fakeTokenStore) RedeemResetToken(_ context.Context, token string, maxAge time.Duration) (string, error) {
	return redeem(s.reset, token, maxAge, s.now)
}

type fakeNotifier struct {
	verificationSent []string
	resetSent        []string
	err              error
}

func (n *fakeNotifier) SendVerificationEmail(_ context.Context, recipient, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.verificationSent = append(n.verificationSent, recipient)
	return nil
}

func (n *fakeNotifier) SendPasswordResetEmail(_ context.Context, recipient, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.resetSent = append(n.resetSent, recipient)
	return nil
}

type fakeQuotaInit struct{ calls int }

func (q *fakeQuotaInit) GetOrInitQuotaState(_ context.Context, _, _ string) error {
	q.calls++
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type testFixture struct {
	svc      *Service
	profiles *fakeProfileStore
	tokens   *fakeTokenStore
	notifier *fakeNotifier
	quota    *fakeQuotaInit
	codec    *AccessTokenCodec
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}

	profiles := newFakeProfileStore()
	tokens := newFakeTokenStore(now)
	notifier := &fakeNotifier{}
	quotaInit := &fakeQuotaInit{}
	codec := NewAccessTokenCodec("0123456789abcdef0123456789abcdef", time.Hour, clock)

	svc := NewService(ServiceConfig{
		Profiles:              profiles,
		Tokens:                tokens,
		Notifier:              notifier,
		Quota:                 quotaInit,
		Hasher:                NewBcryptHasher(4), // minimum cost keeps tests fast
		Codec:                 codec,
		Clock:                 clock,
		Logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
		VerificationTokenTTL:  48 * time.Hour,
		PasswordResetTokenTTL: time.Hour,
	})
	return &testFixture{svc: svc, profiles: profiles, tokens: tokens,
		notifier: notifier, quota: quotaInit, codec: codec}
}

func signup(t *testing.T, f *testFixture) *types.UserProfile {
	t.Helper()
	profile, err := f.svc.Signup(context.Background(), SignupRequest{
		Email:    "Casey@Example.com",
		Password: "hunter2hunter2",
		LastName: "Morgan",
	})
	require.NoError(t, err)
	return profile
}

func assertAuthCode(t *testing.T, err error, want types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, want, appErr.Code)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)

	assert.Equal(t, "casey@example.com", profile.Email, "email is canonicalized")
	require.NotNil(t, profile.PlanName)
	assert.Equal(t, types.PlanFree, *profile.PlanName)
	assert.True(t, profile.IsActive)
	assert.False(t, profile.IsEmailVerified)
	assert.NotEqual(t, "hunter2hunter2", profile.PasswordHash)
	assert.Equal(t, []string{"casey@example.com"}, f.notifier.verificationSent)
	assert.Len(t, f.tokens.verification, 1)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	signup(t, f)

	_, err := f.svc.Signup(context.Background(), SignupRequest{
		Email:    "casey@example.com",
		Password: "differentpass1",
		LastName: "Morgan",
	})
	assertAuthCode(t, err, types.ErrCodeDuplicateResource)
}

func TestSignup_EmailEnqueueFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("sqs unavailable")

	profile, err := f.svc.Signup(context.Background(), SignupRequest{
		Email:    "casey@example.com",
		Password: "hunter2hunter2",
		LastName: "Morgan",
	})
	require.NoError(t, err)
	assert.NotNil(t, profile)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)

	result, err := f.svc.Login(context.Background(), "casey@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, profile.UserID, result.Profile.UserID)
	assert.Equal(t, 1, f.quota.calls)

	userID, err := f.codec.Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, userID)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newFixture(t)
	signup(t, f)

	_, errWrong := f.svc.Login(context.Background(), "casey@example.com", "not-the-password")
	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "whatever123")

	assertAuthCode(t, errWrong, types.ErrCodeInvalidCredentials)
	assertAuthCode(t, errUnknown, types.ErrCodeInvalidCredentials)

	var a, b *types.AppError
	require.True(t, errors.As(errWrong, &a))
	require.True(t, errors.As(errUnknown, &b))
	assert.Equal(t, a.Message, b.Message)
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)
	profile.IsActive = false

	_, err := f.svc.Login(context.Background(), "casey@example.com", "hunter2hunter2")
	assertAuthCode(t, err, types.ErrCodeAccountInactive)
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)

	var token string
	for tok := range f.tokens.verification {
		token = tok
	}

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	assert.True(t, profile.IsEmailVerified)

	err := f.svc.VerifyEmail(context.Background(), token)
	assertAuthCode(t, err, types.ErrCodeInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)
	oldHash := profile.PasswordHash

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "casey@example.com"))
	require.Len(t, f.tokens.reset, 1)
	assert.Equal(t, []string{"casey@example.com"}, f.notifier.resetSent)

	var token string
	for tok := range f.tokens.reset {
		token = tok
	}

	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "brandnewpass1"))
	assert.NotEqual(t, oldHash, profile.PasswordHash)

	_, err := f.svc.Login(context.Background(), "casey@example.com", "brandnewpass1")
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), token, "anotherpass12")
	assertAuthCode(t, err, types.ErrCodeInvalidToken)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, f.tokens.reset)
	assert.Empty(t, f.notifier.resetSent)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)

	require.NoError(t, f.svc.ResendVerification(context.Background(), "casey@example.com"))
	assert.Len(t, f.tokens.verification, 2)

	profile.IsEmailVerified = true
	err := f.svc.ResendVerification(context.Background(), "casey@example.com")
	assertAuthCode(t, err, types.ErrCodeValidation)
}

func TestAccessTokenCodec(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := NewAccessTokenCodec("0123456789abcdef0123456789abcdef", time.Hour, clock)

	token := codec.Issue("user_42")
	userID, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user_42", userID)

	_, err = codec.Parse("rsk_not-base64!!")
	assertAuthCode(t, err, types.ErrCodeInvalidToken)

	_, err = codec.Parse("bearer-something-else")
	assertAuthCode(t, err, types.ErrCodeInvalidToken)

	// A token signed with a different key is rejected.
	other := NewAccessTokenCodec("ffffffffffffffffffffffffffffffff", time.Hour, clock)
	_, err = codec.Parse(other.Issue("user_42"))
	assertAuthCode(t, err, types.ErrCodeInvalidToken)

	// Expiry honors the clock.
	late := NewAccessTokenCodec("0123456789abcdef0123456789abcdef", time.Hour,
		fixedClock{now: clock.now.Add(2 * time.Hour)})
	_, err = late.Parse(token)
	assertAuthCode(t, err, types.ErrCodeInvalidToken)
}

func TestTokenResolver(t *testing.T) {
	f := newFixture(t)
	profile := signup(t, f)
	profile.IsEmailVerified = true

	resolver := NewTokenResolver(f.codec, f.profiles)

	actor, err := resolver.ResolveToken(context.Background(), f.codec.Issue(profile.UserID))
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, actor.ID)
	assert.True(t, actor.IsActive)
	assert.True(t, actor.EmailVerified)

	// Live flags: deactivation applies immediately to existing tokens.
	profile.IsActive = false
	actor, err = resolver.ResolveToken(context.Background(), f.codec.Issue(profile.UserID))
	require.NoError(t, err)
	assert.False(t, actor.IsActive)

	_, err = resolver.ResolveToken(context.Background(), f.codec.Issue("user_ghost"))
	assertAuthCode(t, err, types.ErrCodeNotFound)
}
