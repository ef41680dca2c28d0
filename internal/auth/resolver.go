package auth

import (
	"context"

	"recordstack/internal/types"
)

// ProfileStore is the profile lookup surface the resolver and service need,
// satisfied by db.ProfileRepository.
type ProfileStore interface {
	Create(ctx context.Context, p *types.UserProfile) error
	GetByUserID(ctx context.Context, userID string) (*types.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*types.UserProfile, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// TokenResolver turns a bearer access token into an Actor with live account
// flags. Implements the chassis Authenticator contract.
type TokenResolver struct {
	codec    *AccessTokenCodec
	profiles ProfileStore
}

func NewTokenResolver(codec *AccessTokenCodec, profiles ProfileStore) *TokenResolver {
	return &TokenResolver{codec: codec, profiles: profiles}
}

// ResolveToken verifies the token and loads the account. The actor's flags
// come from the database, not the token, so deactivation and verification
// state are always current.
func (r *TokenResolver) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	userID, err := r.codec.Parse(token)
	if err != nil {
		return nil, err
	}
	profile, err := r.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &types.Actor{
		ID:            profile.UserID,
		Email:         profile.Email,
		IsAdmin:       profile.IsAdmin,
		IsActive:      profile.IsActive,
		EmailVerified: profile.IsEmailVerified,
	}, nil
}
