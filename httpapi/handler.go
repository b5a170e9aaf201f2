// Package httpapi exposes the authorization server and resource gateway over
// HTTP. It is a thin adapter: request decoding, routing, and response
// encoding live here; all protocol logic stays in authserver and gateway.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/authserver"
	"github.com/scopegate/scopegate/gateway"
	"github.com/scopegate/scopegate/instrumentation"
	"github.com/scopegate/scopegate/security"
)

// requestIDHeader carries the per-request correlation ID
const requestIDHeader = "X-Request-ID"

// Handler is a thin HTTP adapter for the authorization server and an
// optional resource gateway.
type Handler struct {
	server  *authserver.Server
	gateway *gateway.Gateway // nil when this process serves auth endpoints only

	logger      *slog.Logger
	auditor     *security.Auditor
	rateLimiter *security.RateLimiter
	trustProxy  bool

	instrumentation *instrumentation.Instrumentation
}

// NewHandler creates an HTTP handler for the authorization server.
// The gateway is optional; pass nil to serve only the auth endpoints.
func NewHandler(server *authserver.Server, gw *gateway.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		server:  server,
		gateway: gw,
		logger:  logger,
		auditor: security.NewAuditor(logger, true),
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the HTTP layer
func (h *Handler) SetInstrumentation(inst *instrumentation.Instrumentation) {
	h.instrumentation = inst
}

// SetRateLimiter enables per-IP rate limiting on the token and introspection
// endpoints.
func (h *Handler) SetRateLimiter(rl *security.RateLimiter) {
	h.rateLimiter = rl
}

// SetTrustProxy controls whether X-Forwarded-For headers are honored when
// resolving client IPs. Enable only behind a trusted reverse proxy.
func (h *Handler) SetTrustProxy(trust bool) {
	h.trustProxy = trust
}

// RegisterRoutes registers all endpoints on the mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/authorize", h.wrap(h.ServeAuthorize))
	mux.Handle("/token", h.wrap(h.rateLimited(h.ServeToken)))
	mux.Handle("/introspect", h.wrap(h.rateLimited(h.ServeIntrospect)))
	mux.Handle("/revoke", h.wrap(h.ServeRevoke))
	mux.Handle("/userinfo", h.wrap(h.ServeUserInfo))
	mux.Handle("/.well-known/oauth-authorization-server", h.wrap(h.ServeMetadata))

	if h.gateway != nil {
		mux.Handle("/resource/", h.wrap(h.ServeResource))
	}
}

// wrap applies the common middleware: security headers and a request ID
func (h *Handler) wrap(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		security.SetSecurityHeaders(w, h.server.Config().Issuer)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		if h.instrumentation != nil {
			h.instrumentation.Metrics().RecordHTTPRequest(r.Context(),
				r.Method, r.URL.Path, sw.status,
				float64(time.Since(start).Milliseconds()))
		}

		h.logger.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID)
	})
}

// rateLimited rejects requests from IPs that exceed the configured rate
func (h *Handler) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.rateLimiter != nil {
			clientIP := security.ClientIP(r, h.trustProxy)
			if !h.rateLimiter.Allow(clientIP) {
				h.logger.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
				h.auditor.LogEvent(security.Event{
					Type:    security.EventRateLimitExceeded,
					Details: map[string]any{"ip": clientIP, "path": r.URL.Path},
				})
				if h.instrumentation != nil {
					m := h.instrumentation.Metrics()
					m.RecordRateLimitExceeded(r.Context(), "ip")
					m.RecordAuditEvent(r.Context(), security.EventRateLimitExceeded)
				}
				w.Header().Set("Retry-After", "60")
				h.writeError(w, "rate_limit_exceeded", "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

// statusWriter records the response status for request logging
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ServeAuthorize handles GET and POST /authorize. Query parameters and form
// fields are accepted interchangeably; credentials arrive as form fields on
// the POST that follows an authentication_required response.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	req := &scopegate.AuthorizeRequest{
		ClientID:     r.Form.Get("client_id"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		ResponseType: r.Form.Get("response_type"),
		Scope:        r.Form.Get("scope"),
		State:        r.Form.Get("state"),
		Username:     r.Form.Get("username"),
		Password:     r.Form.Get("password"),
	}

	resp, err := h.server.Authorize(r.Context(), req)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeToken handles POST /token
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	req := &scopegate.TokenRequest{
		GrantType:    r.Form.Get("grant_type"),
		Code:         r.Form.Get("code"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		RefreshToken: r.Form.Get("refresh_token"),
		Scope:        r.Form.Get("scope"),
	}

	resp, err := h.server.Token(r.Context(), req)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeIntrospect handles POST /introspect (RFC 7662)
func (h *Handler) ServeIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	resp, err := h.server.Introspect(r.Context(), r.Form.Get("token"))
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeRevoke handles POST /revoke (RFC 7009)
func (h *Handler) ServeRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, scopegate.ErrorCodeInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	resp, err := h.server.Revoke(r.Context(), r.Form.Get("token"))
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeUserInfo handles GET /userinfo with a Bearer token
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.extractBearerToken(w, r)
	if !ok {
		return
	}

	resp, err := h.server.UserInfo(r.Context(), token)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeMetadata handles GET /.well-known/oauth-authorization-server (RFC 8414)
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.server.Metadata())
}

// ServeResource handles GET /resource/{name} through the gateway
func (h *Handler) ServeResource(w http.ResponseWriter, r *http.Request) {
	token, ok := h.extractBearerToken(w, r)
	if !ok {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/resource/")
	if name == "" {
		h.writeError(w, scopegate.ErrorCodeNotFound, "resource name is required", http.StatusNotFound)
		return
	}

	result, err := h.gateway.Resource(r.Context(), token, name)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// extractBearerToken pulls the token out of the Authorization header,
// writing an invalid_token error when it is missing or malformed.
func (h *Handler) extractBearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.writeError(w, scopegate.ErrorCodeInvalidToken, "missing Authorization header", http.StatusUnauthorized)
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		h.writeError(w, scopegate.ErrorCodeInvalidToken, "invalid Authorization header format", http.StatusUnauthorized)
		return "", false
	}
	return parts[1], true
}

// writeJSON writes a JSON response body
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeOAuthError maps a structured error to its HTTP representation
func (h *Handler) writeOAuthError(w http.ResponseWriter, err error) {
	oauthErr := scopegate.AsOAuthError(err)
	h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
}

// writeError writes an OAuth error response body
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	h.writeJSON(w, status, &scopegate.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
