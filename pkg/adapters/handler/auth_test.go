package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"golang.org/x/oauth2"
)

// newFakeGoogle serves the token exchange and userinfo endpoints.
func newFakeGoogle(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(GoogleUser{ID: "42", Email: email, VerifiedEmail: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthHandler(t *testing.T, google *httptest.Server, allowed []string) *AuthHandler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := NewAuthHandler(&config.Config{
		GoogleClientID:     "client",
		GoogleClientSecret: "secret",
		GoogleRedirectURL:  "http://localhost/auth/google/callback",
		JWTSecret:          testSecret,
		FrontendURL:        "http://localhost/dashboard",
		AllowedEmails:      allowed,
	}, log)
	h.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:   google.URL + "/auth",
		TokenURL:  google.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	h.userInfoURL = google.URL + "/userinfo"
	return h
}

func callbackRequest(state, cookieState string) *http.Request {
	req := httptest.NewRequest("GET", "/auth/google/callback?state="+state+"&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: cookieState})
	return req
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCallbackIssuesToken(t *testing.T) {
	h := newTestAuthHandler(t, newFakeGoogle(t, "alice@example.com"), nil)

	rr := httptest.NewRecorder()
	h.Callback(rr, callbackRequest("s1", "s1"))

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "http://localhost/dashboard", rr.Header().Get("Location"))

	cookie := findCookie(rr, authCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)

	// the issued cookie authenticates API calls
	var seen *string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	})
	req := httptest.NewRequest("GET", "/api/v1/links", nil)
	req.AddCookie(cookie)
	NewMiddleware(&config.Config{JWTSecret: testSecret}).Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "alice@example.com", *seen)
}

func TestCallbackRejections(t *testing.T) {
	google := newFakeGoogle(t, "mallory@example.com")

	tests := []struct {
		name    string
		allowed []string
		req     *http.Request
		status  int
	}{
		{"state mismatch", nil, callbackRequest("s1", "other"), http.StatusBadRequest},
		{"email not allowed", []string{"alice@example.com"}, callbackRequest("s1", "s1"), http.StatusForbidden},
		{"missing state cookie", nil, httptest.NewRequest("GET", "/auth/google/callback?state=s1&code=abc", nil), http.StatusTemporaryRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(t, google, tt.allowed)
			rr := httptest.NewRecorder()
			h.Callback(rr, tt.req)
			assert.Equal(t, tt.status, rr.Code)
			assert.Nil(t, findCookie(rr, authCookieName))
		})
	}
}

func TestLoginSetsStateCookie(t *testing.T) {
	h := newTestAuthHandler(t, newFakeGoogle(t, "alice@example.com"), nil)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("GET", "/auth/google/login", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := findCookie(rr, "oauthstate")
	require.NotNil(t, state)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}
