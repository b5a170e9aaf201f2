package authserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/internal/util"
	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
)

// Token processes a token endpoint request. Client credentials are validated
// first for every grant type; only then is the grant dispatched.
func (s *Server) Token(ctx context.Context, req *scopegate.TokenRequest) (*scopegate.TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "token")
	defer span.End()

	if err := s.clients.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, "client authentication failed")
		if s.instrumentation != nil {
			s.instrumentation.Metrics().RecordAuthFailure(ctx, "client")
		}
		return nil, scopegate.ErrInvalidClient("client authentication failed")
	}

	var (
		resp *scopegate.TokenResponse
		err  error
	)
	switch req.GrantType {
	case scopegate.GrantTypeAuthorizationCode:
		resp, err = s.exchangeAuthorizationCode(ctx, req)
	case scopegate.GrantTypeRefreshToken:
		resp, err = s.refreshAccessToken(ctx, req)
	case scopegate.GrantTypeClientCredentials:
		resp, err = s.clientCredentialsGrant(ctx, req)
	default:
		return nil, scopegate.ErrUnsupportedGrantType(fmt.Sprintf("grant_type %q is not supported", req.GrantType))
	}
	if err != nil {
		return nil, err
	}

	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordGrantIssued(ctx, req.GrantType, req.ClientID)
	}
	return resp, nil
}

// exchangeAuthorizationCode implements the authorization_code grant. The code
// is taken from the store atomically, so a replayed code fails no matter how
// the exchanges interleave. Missing, expired, and mismatched codes all report
// invalid_grant; the distinctions are logged, not disclosed.
func (s *Server) exchangeAuthorizationCode(ctx context.Context, req *scopegate.TokenRequest) (*scopegate.TokenResponse, error) {
	if req.Code == "" {
		return nil, scopegate.ErrInvalidRequest("code is required")
	}

	record, err := s.codes.TakeAuthorizationCode(ctx, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrCodeExpired):
			s.logger.Warn("Authorization code expired at exchange", "client_id", req.ClientID)
			return nil, scopegate.ErrInvalidGrant("authorization code expired")
		case errors.Is(err, storage.ErrCodeNotFound):
			s.auditor.LogEvent(security.Event{
				Type:     security.EventCodeReplayed,
				ClientID: req.ClientID,
			})
			if s.instrumentation != nil {
				s.instrumentation.Metrics().RecordCodeReplay(ctx)
			}
			return nil, scopegate.ErrInvalidGrant("authorization code is invalid or already used")
		default:
			return nil, scopegate.ErrServerError("code lookup failed")
		}
	}

	if record.ClientID != req.ClientID {
		return nil, scopegate.ErrInvalidGrant("authorization code was issued to a different client")
	}
	if record.RedirectURI != req.RedirectURI {
		return nil, scopegate.ErrInvalidGrant("redirect_uri does not match the authorization request")
	}

	accessToken, err := s.mintAccessToken(ctx, record.ClientID, record.Username, record.Scopes)
	if err != nil {
		return nil, err
	}

	refreshToken := &storage.RefreshToken{
		Token:     security.GenerateOpaqueToken(),
		ClientID:  record.ClientID,
		Username:  record.Username,
		Scopes:    record.Scopes,
		CreatedAt: time.Now(),
	}
	if err := s.refreshTokens.SaveRefreshToken(ctx, refreshToken); err != nil {
		return nil, scopegate.ErrServerError("failed to store refresh token")
	}

	scope := util.JoinScopes(record.Scopes)
	s.auditor.LogTokenIssued(record.Username, record.ClientID, scopegate.GrantTypeAuthorizationCode, scope)

	return &scopegate.TokenResponse{
		AccessToken:  accessToken.Token,
		TokenType:    scopegate.TokenTypeBearer,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
		RefreshToken: refreshToken.Token,
		Scope:        scope,
	}, nil
}

// refreshAccessToken implements the refresh_token grant. The refresh token is
// reused, not rotated, and a requested scope may only narrow the original
// grant, never widen it.
func (s *Server) refreshAccessToken(ctx context.Context, req *scopegate.TokenRequest) (*scopegate.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, scopegate.ErrInvalidRequest("refresh_token is required")
	}

	record, err := s.refreshTokens.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, scopegate.ErrInvalidGrant("refresh token is invalid or revoked")
		}
		return nil, scopegate.ErrServerError("refresh token lookup failed")
	}
	if record.ClientID != req.ClientID {
		return nil, scopegate.ErrInvalidGrant("refresh token was issued to a different client")
	}

	scopes := record.Scopes
	if req.Scope != "" {
		requested := util.ParseScopes(req.Scope)
		if scope, ok := util.MissingScope(requested, record.Scopes); !ok {
			return nil, scopegate.ErrInvalidScope(fmt.Sprintf("scope %q exceeds the original grant", scope))
		}
		scopes = requested
	}

	accessToken, err := s.mintAccessToken(ctx, record.ClientID, record.Username, scopes)
	if err != nil {
		return nil, err
	}

	scope := util.JoinScopes(scopes)
	s.auditor.LogTokenIssued(record.Username, record.ClientID, scopegate.GrantTypeRefreshToken, scope)

	return &scopegate.TokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   scopegate.TokenTypeBearer,
		ExpiresIn:   int64(s.config.AccessTokenTTL.Seconds()),
		Scope:       scope,
	}, nil
}

// clientCredentialsGrant implements the client_credentials grant. The minted
// access token belongs to the client application itself, so its username is
// empty and no refresh token is issued.
func (s *Server) clientCredentialsGrant(ctx context.Context, req *scopegate.TokenRequest) (*scopegate.TokenResponse, error) {
	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, scopegate.ErrServerError("client lookup failed")
	}

	scopes := client.Scopes
	if req.Scope != "" {
		requested := util.ParseScopes(req.Scope)
		if scope, ok := util.MissingScope(requested, client.Scopes); !ok {
			return nil, scopegate.ErrInvalidScope(fmt.Sprintf("scope %q is not allowed for this client", scope))
		}
		scopes = requested
	}

	accessToken, err := s.mintAccessToken(ctx, client.ID, "", scopes)
	if err != nil {
		return nil, err
	}

	scope := util.JoinScopes(scopes)
	s.auditor.LogTokenIssued("", client.ID, scopegate.GrantTypeClientCredentials, scope)

	return &scopegate.TokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   scopegate.TokenTypeBearer,
		ExpiresIn:   int64(s.config.AccessTokenTTL.Seconds()),
		Scope:       scope,
	}, nil
}

// mintAccessToken creates and stores a fresh access token
func (s *Server) mintAccessToken(ctx context.Context, clientID, username string, scopes []string) (*storage.AccessToken, error) {
	now := time.Now()
	token := &storage.AccessToken{
		Token:     security.GenerateOpaqueToken(),
		ClientID:  clientID,
		Username:  username,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.AccessTokenTTL),
	}
	if err := s.accessTokens.SaveAccessToken(ctx, token); err != nil {
		return nil, scopegate.ErrServerError("failed to store access token")
	}
	return token, nil
}
