package authserver

import (
	"context"
	"errors"
	"time"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/internal/util"
	"github.com/scopegate/scopegate/storage"
)

// Introspect reports a token's current validity and attributes (RFC 7662).
//
// Access tokens are checked first. An expired access token still has its
// attributes reported, with active=false, until the store's sweep collects
// it. Refresh tokens are never time-limited, so a known refresh token is
// always active. Unknown tokens yield {active:false} and nothing else.
func (s *Server) Introspect(ctx context.Context, token string) (*scopegate.IntrospectionResponse, error) {
	ctx, span := s.startSpan(ctx, "introspect")
	defer span.End()

	resp := s.introspect(ctx, token)
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordIntrospection(ctx, resp.Active)
	}
	return resp, nil
}

func (s *Server) introspect(ctx context.Context, token string) *scopegate.IntrospectionResponse {
	if access, err := s.accessTokens.GetAccessToken(ctx, token); err == nil {
		return &scopegate.IntrospectionResponse{
			Active:    time.Now().Before(access.ExpiresAt),
			Scope:     util.JoinScopes(access.Scopes),
			ClientID:  access.ClientID,
			Username:  access.Username,
			TokenType: scopegate.TokenTypeBearer,
			Exp:       access.ExpiresAt.Unix(),
		}
	}

	if refresh, err := s.refreshTokens.GetRefreshToken(ctx, token); err == nil {
		return &scopegate.IntrospectionResponse{
			Active:    true,
			Scope:     util.JoinScopes(refresh.Scopes),
			ClientID:  refresh.ClientID,
			Username:  refresh.Username,
			TokenType: scopegate.TokenTypeRefresh,
		}
	}

	// Minimal disclosure for unknown tokens
	return &scopegate.IntrospectionResponse{Active: false}
}

// Revoke removes a token from whichever stores hold it (RFC 7009).
// Revocation is idempotent: an absent or already-revoked token still reports
// success, so callers cannot probe the token stores through this endpoint.
func (s *Server) Revoke(ctx context.Context, token string) (*scopegate.RevocationResponse, error) {
	ctx, span := s.startSpan(ctx, "revoke")
	defer span.End()

	revoked := false

	if record, err := s.accessTokens.GetAccessToken(ctx, token); err == nil {
		if err := s.accessTokens.DeleteAccessToken(ctx, token); err != nil {
			return nil, scopegate.ErrServerError("failed to revoke access token")
		}
		s.auditor.LogTokenRevoked(record.Username, record.ClientID, scopegate.TokenTypeBearer)
		revoked = true
	}

	if record, err := s.refreshTokens.GetRefreshToken(ctx, token); err == nil {
		if err := s.refreshTokens.DeleteRefreshToken(ctx, token); err != nil {
			return nil, scopegate.ErrServerError("failed to revoke refresh token")
		}
		s.auditor.LogTokenRevoked(record.Username, record.ClientID, scopegate.TokenTypeRefresh)
		revoked = true
	}

	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordRevocation(ctx, revoked)
	}

	if revoked {
		return &scopegate.RevocationResponse{
			Status:  "success",
			Message: "Token revoked",
		}, nil
	}
	return &scopegate.RevocationResponse{
		Status:  "success",
		Message: "Token not found (may already be revoked)",
	}, nil
}

// UserInfo returns the flat user-info projection for an access token carrying
// the "profile" scope. Tokens minted by the client_credentials grant have no
// user and are rejected.
func (s *Server) UserInfo(ctx context.Context, accessToken string) (*scopegate.UserInfoResponse, error) {
	ctx, span := s.startSpan(ctx, "userinfo")
	defer span.End()

	record, err := s.accessTokens.GetAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, scopegate.ErrInvalidToken("invalid or expired token")
		}
		return nil, scopegate.ErrServerError("token lookup failed")
	}
	if !time.Now().Before(record.ExpiresAt) {
		return nil, scopegate.ErrInvalidToken("token expired")
	}

	if !util.ContainsScope(record.Scopes, "profile") {
		return nil, scopegate.ErrInsufficientScope("requires 'profile' scope")
	}

	if record.Username == "" {
		return nil, scopegate.ErrInvalidRequest("no user associated with token")
	}

	user, err := s.users.GetUser(ctx, record.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, scopegate.ErrNotFound("user not found")
		}
		return nil, scopegate.ErrServerError("user lookup failed")
	}

	return &scopegate.UserInfoResponse{
		Sub:               user.Username,
		Email:             user.Email,
		EmailVerified:     true,
		Name:              util.Capitalize(user.Username),
		PreferredUsername: user.Username,
		UpdatedAt:         time.Now().Unix(),
	}, nil
}
