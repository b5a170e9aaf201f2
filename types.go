package scopegate

// Grant types supported by the authorization server
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
)

// Token types reported by introspection
const (
	TokenTypeBearer  = "Bearer"
	TokenTypeRefresh = "refresh_token"
)

// Authorization response statuses
const (
	// StatusSuccess indicates the authorization request succeeded and a
	// redirect target carrying the code is available.
	StatusSuccess = "success"

	// StatusAuthenticationRequired indicates the request was well-formed but
	// no user credentials were supplied. The caller must re-invoke authorize
	// with credentials. This models the "redirect to login" step and is not
	// an error.
	StatusAuthenticationRequired = "authentication_required"
)

// AuthorizeRequest carries the parameters of an authorization request.
// Username and Password stand in for the interactive login step; when both
// are empty the server responds with StatusAuthenticationRequired.
type AuthorizeRequest struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	ResponseType string `json:"response_type"`
	Scope        string `json:"scope"`
	State        string `json:"state,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
}

// AuthorizeResponse is the result of a successful or pending authorization.
type AuthorizeResponse struct {
	// Status is StatusSuccess or StatusAuthenticationRequired
	Status string `json:"status"`

	// RedirectTo is the redirect target of the form
	// redirect_uri?code=<code>[&state=<state>] (success only)
	RedirectTo string `json:"redirect_to,omitempty"`

	// ClientName identifies the requesting client to the user during login
	ClientName string `json:"client_name,omitempty"`

	// RequestedScopes lists the scopes being granted (authentication_required only)
	RequestedScopes []string `json:"requested_scopes,omitempty"`

	// Message is a human-readable summary
	Message string `json:"message,omitempty"`
}

// TokenRequest carries the parameters of a token endpoint request.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	// AccessToken is the access token
	AccessToken string `json:"access_token"`

	// TokenType is the type of token (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is the refresh token (authorization_code grant only)
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-joined scope of the access token
	Scope string `json:"scope,omitempty"`
}

// IntrospectionResponse represents an RFC 7662 introspection result.
// For unknown tokens only Active=false is populated (minimal disclosure).
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
}

// RevocationResponse represents an RFC 7009 revocation result.
// Revocation is idempotent: revoking an absent token still reports success.
type RevocationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UserInfoResponse is the flat user-info projection returned for tokens
// carrying the "profile" scope.
type UserInfoResponse struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	UpdatedAt         int64  `json:"updated_at"`
}

// ServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type ServerMetadata struct {
	// Issuer is the authorization server's issuer identifier URL
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// IntrospectionEndpoint is the URL of the OAuth 2.0 token introspection endpoint (RFC 7662)
	IntrospectionEndpoint string `json:"introspection_endpoint"`

	// RevocationEndpoint is the URL of the OAuth 2.0 token revocation endpoint (RFC 7009)
	RevocationEndpoint string `json:"revocation_endpoint"`

	// ResponseTypesSupported lists the OAuth response types supported
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported lists the OAuth grant types supported
	GrantTypesSupported []string `json:"grant_types_supported"`

	// ScopesSupported lists the OAuth scopes supported
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods
	// supported at the token endpoint
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// ErrorResponse represents an OAuth error response body
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}
