package authserver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/internal/util"
	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
)

// Authorize processes an authorization request. Validation is fail-fast and
// ordered; no state is written until every precondition has passed.
//
// When the request carries no user credentials the response has status
// authentication_required, modeling the redirect-to-login step: the caller is
// expected to re-invoke with username and password.
func (s *Server) Authorize(ctx context.Context, req *scopegate.AuthorizeRequest) (*scopegate.AuthorizeResponse, error) {
	ctx, span := s.startSpan(ctx, "authorize")
	defer span.End()

	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, scopegate.ErrInvalidClient("unknown client: " + req.ClientID)
		}
		return nil, scopegate.ErrServerError("client lookup failed")
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, scopegate.ErrInvalidRequest("redirect_uri is not registered for this client")
	}

	if req.ResponseType != "code" {
		return nil, scopegate.ErrUnsupportedResponseType(fmt.Sprintf("response_type %q is not supported, use \"code\"", req.ResponseType))
	}

	requestedScopes := util.ParseScopes(req.Scope)
	if scope, ok := util.MissingScope(requestedScopes, client.Scopes); !ok {
		return nil, scopegate.ErrInvalidScope(fmt.Sprintf("scope %q is not allowed for this client", scope))
	}

	// No credentials yet: the caller must authenticate and retry
	if req.Username == "" && req.Password == "" {
		return &scopegate.AuthorizeResponse{
			Status:          scopegate.StatusAuthenticationRequired,
			ClientName:      client.Name,
			RequestedScopes: requestedScopes,
			Message:         fmt.Sprintf("%s is requesting access; authenticate to continue", client.Name),
		}, nil
	}

	if err := s.users.VerifyPassword(ctx, req.Username, req.Password); err != nil {
		// Unknown user and wrong password report identically
		s.auditor.LogAuthFailure(req.Username, req.ClientID, "user authentication failed")
		if s.instrumentation != nil {
			s.instrumentation.Metrics().RecordAuthFailure(ctx, "user")
		}
		return nil, scopegate.ErrAccessDenied("authentication failed")
	}

	user, err := s.users.GetUser(ctx, req.Username)
	if err != nil {
		return nil, scopegate.ErrServerError("user lookup failed")
	}

	if scope, ok := util.MissingScope(requestedScopes, user.Scopes); !ok {
		return nil, scopegate.ErrInvalidScope(fmt.Sprintf("scope %q is not granted to this user", scope))
	}

	now := time.Now()
	code := &storage.AuthorizationCode{
		Code:        security.GenerateOpaqueToken(),
		ClientID:    client.ID,
		Username:    user.Username,
		Scopes:      requestedScopes,
		RedirectURI: req.RedirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.AuthorizationCodeTTL),
	}
	if err := s.codes.SaveAuthorizationCode(ctx, code); err != nil {
		return nil, scopegate.ErrServerError("failed to store authorization code")
	}

	s.auditor.LogEvent(security.Event{
		Type:     security.EventCodeIssued,
		Username: user.Username,
		ClientID: client.ID,
		Details:  map[string]any{"scope": req.Scope},
	})
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordAuthorizationCompleted(ctx, client.ID, true)
	}
	s.logger.Info("Authorization code issued",
		"client_id", client.ID,
		"scope", req.Scope)

	redirectTo := req.RedirectURI + "?code=" + url.QueryEscape(code.Code)
	if req.State != "" {
		redirectTo += "&state=" + url.QueryEscape(req.State)
	}

	return &scopegate.AuthorizeResponse{
		Status:     scopegate.StatusSuccess,
		RedirectTo: redirectTo,
		Message:    "authorization granted",
	}, nil
}
