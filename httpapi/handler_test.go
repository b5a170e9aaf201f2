package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/authserver"
	"github.com/scopegate/scopegate/gateway"
	"github.com/scopegate/scopegate/instrumentation"
	"github.com/scopegate/scopegate/internal/testutil"
	"github.com/scopegate/scopegate/security"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	store := testutil.NewSeededStore(t)
	srv, err := authserver.New(authserver.Stores{
		Clients:       store,
		Users:         store,
		Codes:         store,
		AccessTokens:  store,
		RefreshTokens: store,
	}, authserver.Config{Issuer: "http://localhost:9000"})
	testutil.AssertNoError(t, err)

	gw, err := gateway.New(srv, gateway.Config{})
	testutil.AssertNoError(t, err)
	gw.SetStatsSource(store)

	inst, err := instrumentation.New(instrumentation.Config{ServiceName: "httpapi-test"})
	testutil.AssertNoError(t, err)

	handler := NewHandler(srv, gw, nil)
	handler.SetInstrumentation(inst)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func postForm(t *testing.T, mux *http.ServeMux, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return &v
}

// obtainTokens drives the full code flow over HTTP
func obtainTokens(t *testing.T, mux *http.ServeMux, scope string) *scopegate.TokenResponse {
	t.Helper()

	rr := postForm(t, mux, "/authorize", url.Values{
		"client_id":     {"demo-client-id"},
		"redirect_uri":  {"http://localhost:8080/callback"},
		"response_type": {"code"},
		"scope":         {scope},
		"username":      {"alice"},
		"password":      {"password123"},
	})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	auth := decodeJSON[scopegate.AuthorizeResponse](t, rr)
	testutil.AssertEqual(t, auth.Status, scopegate.StatusSuccess)

	u, err := url.Parse(auth.RedirectTo)
	testutil.AssertNoError(t, err)
	code := u.Query().Get("code")

	rr = postForm(t, mux, "/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"http://localhost:8080/callback"},
		"client_id":     {"demo-client-id"},
		"client_secret": {testutil.DemoClientSecret},
	})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	return decodeJSON[scopegate.TokenResponse](t, rr)
}

func TestAuthorizeEndpoint(t *testing.T) {
	mux := newTestMux(t)

	t.Run("authentication required without credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/authorize?client_id=demo-client-id&redirect_uri=http://localhost:8080/callback&response_type=code&scope=read", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		testutil.AssertEqual(t, rr.Code, http.StatusOK)
		resp := decodeJSON[scopegate.AuthorizeResponse](t, rr)
		testutil.AssertEqual(t, resp.Status, scopegate.StatusAuthenticationRequired)
		testutil.AssertEqual(t, resp.ClientName, "Demo Client")
	})

	t.Run("unknown client", func(t *testing.T) {
		rr := postForm(t, mux, "/authorize", url.Values{
			"client_id":     {"ghost"},
			"redirect_uri":  {"http://localhost:8080/callback"},
			"response_type": {"code"},
			"scope":         {"read"},
		})
		testutil.AssertEqual(t, rr.Code, http.StatusUnauthorized)
		errResp := decodeJSON[scopegate.ErrorResponse](t, rr)
		testutil.AssertEqual(t, errResp.Error, scopegate.ErrorCodeInvalidClient)
	})

	t.Run("security headers set", func(t *testing.T) {
		rr := postForm(t, mux, "/authorize", url.Values{})
		testutil.AssertEqual(t, rr.Header().Get("X-Content-Type-Options"), "nosniff")
		testutil.AssertEqual(t, rr.Header().Get("Cache-Control"), "no-store, no-cache, must-revalidate, private")
		testutil.AssertTrue(t, rr.Header().Get("X-Request-ID") != "", "request ID header must be set")
	})
}

func TestTokenEndpoint(t *testing.T) {
	mux := newTestMux(t)
	tokens := obtainTokens(t, mux, "read write")

	testutil.AssertEqual(t, tokens.TokenType, scopegate.TokenTypeBearer)
	testutil.AssertEqual(t, tokens.ExpiresIn, int64(3600))
	testutil.AssertScopes(t, tokens.Scope, "read", "write")

	t.Run("wrong client secret", func(t *testing.T) {
		rr := postForm(t, mux, "/token", url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"demo-client-id"},
			"client_secret": {"wrong"},
		})
		testutil.AssertEqual(t, rr.Code, http.StatusUnauthorized)
		errResp := decodeJSON[scopegate.ErrorResponse](t, rr)
		testutil.AssertEqual(t, errResp.Error, scopegate.ErrorCodeInvalidClient)
	})

	t.Run("GET is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/token", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		testutil.AssertEqual(t, rr.Code, http.StatusMethodNotAllowed)
	})
}

func TestIntrospectEndpoint(t *testing.T) {
	mux := newTestMux(t)
	tokens := obtainTokens(t, mux, "read")

	rr := postForm(t, mux, "/introspect", url.Values{"token": {tokens.AccessToken}})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	info := decodeJSON[scopegate.IntrospectionResponse](t, rr)
	testutil.AssertTrue(t, info.Active, "fresh token must be active")
	testutil.AssertEqual(t, info.Username, "alice")

	rr = postForm(t, mux, "/introspect", url.Values{"token": {"never-issued"}})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	info = decodeJSON[scopegate.IntrospectionResponse](t, rr)
	testutil.AssertFalse(t, info.Active, "unknown token must be inactive")
}

func TestRevokeEndpoint(t *testing.T) {
	mux := newTestMux(t)
	tokens := obtainTokens(t, mux, "read")

	rr := postForm(t, mux, "/revoke", url.Values{"token": {tokens.AccessToken}})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	resp := decodeJSON[scopegate.RevocationResponse](t, rr)
	testutil.AssertEqual(t, resp.Status, "success")

	// Idempotent
	rr = postForm(t, mux, "/revoke", url.Values{"token": {tokens.AccessToken}})
	testutil.AssertEqual(t, rr.Code, http.StatusOK)

	rr = postForm(t, mux, "/introspect", url.Values{"token": {tokens.AccessToken}})
	info := decodeJSON[scopegate.IntrospectionResponse](t, rr)
	testutil.AssertFalse(t, info.Active, "revoked token must introspect inactive")
}

func TestUserInfoEndpoint(t *testing.T) {
	mux := newTestMux(t)
	tokens := obtainTokens(t, mux, "read profile")

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	info := decodeJSON[scopegate.UserInfoResponse](t, rr)
	testutil.AssertEqual(t, info.Sub, "alice")
	testutil.AssertEqual(t, info.Name, "Alice")

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		testutil.AssertEqual(t, rr.Code, http.StatusUnauthorized)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		testutil.AssertEqual(t, rr.Code, http.StatusUnauthorized)
	})
}

func TestMetadataEndpoint(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	testutil.AssertEqual(t, rr.Code, http.StatusOK)
	md := decodeJSON[scopegate.ServerMetadata](t, rr)
	testutil.AssertEqual(t, md.Issuer, "http://localhost:9000")
	testutil.AssertEqual(t, md.TokenEndpoint, "http://localhost:9000/token")
}

func TestResourceEndpoint(t *testing.T) {
	mux := newTestMux(t)
	tokens := obtainTokens(t, mux, "read profile")

	getResource := func(name, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/resource/"+name, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	t.Run("profile with scope", func(t *testing.T) {
		rr := getResource("profile", tokens.AccessToken)
		testutil.AssertEqual(t, rr.Code, http.StatusOK)
		payload := decodeJSON[gateway.ProfilePayload](t, rr)
		testutil.AssertEqual(t, payload.Username, "alice")
	})

	t.Run("admin without scope", func(t *testing.T) {
		rr := getResource("admin", tokens.AccessToken)
		testutil.AssertEqual(t, rr.Code, http.StatusForbidden)
		errResp := decodeJSON[scopegate.ErrorResponse](t, rr)
		testutil.AssertEqual(t, errResp.Error, scopegate.ErrorCodeInsufficientScope)
	})

	t.Run("unknown resource", func(t *testing.T) {
		rr := getResource("secrets", tokens.AccessToken)
		testutil.AssertEqual(t, rr.Code, http.StatusNotFound)
	})

	t.Run("bad token", func(t *testing.T) {
		rr := getResource("profile", "never-issued")
		testutil.AssertEqual(t, rr.Code, http.StatusUnauthorized)
	})
}

func TestTokenEndpointRateLimit(t *testing.T) {
	store := testutil.NewSeededStore(t)
	srv, err := authserver.New(authserver.Stores{
		Clients:       store,
		Users:         store,
		Codes:         store,
		AccessTokens:  store,
		RefreshTokens: store,
	}, authserver.Config{Issuer: "http://localhost:9000"})
	testutil.AssertNoError(t, err)

	inst, err := instrumentation.New(instrumentation.Config{ServiceName: "httpapi-test"})
	testutil.AssertNoError(t, err)

	handler := NewHandler(srv, nil, nil)
	handler.SetInstrumentation(inst)
	rl := security.NewRateLimiter(1, 2, nil)
	t.Cleanup(rl.Stop)
	handler.SetRateLimiter(rl)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"demo-client-id"},
		"client_secret": {testutil.DemoClientSecret},
	}

	// Burst of 2 passes, the third is throttled
	limited := false
	for i := 0; i < 5; i++ {
		rr := postForm(t, mux, "/token", form)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			testutil.AssertEqual(t, rr.Header().Get("Retry-After"), "60")
			break
		}
	}
	testutil.AssertTrue(t, limited, "rate limiter must eventually throttle")
}
