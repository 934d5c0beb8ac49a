package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jakechorley/nurse-duty/internal/config"
)

func TestMissingScopes(t *testing.T) {
	assert.Empty(t, MissingScopes("openid "+ScopeSheets))
	assert.Equal(t, []string{ScopeSheets}, MissingScopes("openid email"))
	assert.Equal(t, []string{ScopeSheets}, MissingScopes(""))
}

func TestGetOAuthConfig(t *testing.T) {
	cfg := &config.OAuthClientConfig{Installed: &config.OAuthClient{
		ClientID:     "id",
		ProjectID:    "nurse-duty",
		AuthURI:      "https://accounts.google.com/o/oauth2/auth",
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientSecret: "secret",
		RedirectURIs: []string{"http://localhost"},
	}}

	oc, err := GetOAuthConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "id", oc.ClientID)
	assert.Equal(t, []string{ScopeSheets}, oc.Scopes)
	assert.Equal(t, "http://localhost:3000/oauth/callback", oc.RedirectURL)
}

func TestTokenFileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	missing, err := LoadTokenFromFile("test")
	require.NoError(t, err)
	assert.Nil(t, missing)

	token := &oauth2.Token{AccessToken: "abc", RefreshToken: "def", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	require.NoError(t, SaveTokenToFile("test", token))

	loaded, err := LoadTokenFromFile("test")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "abc", loaded.AccessToken)
	assert.Equal(t, "def", loaded.RefreshToken)

	require.NoError(t, DeleteTokenFile("test"))
	require.NoError(t, DeleteTokenFile("test"), "deleting a missing token is not an error")
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	h := callbackHandler("s1", codes, errs)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+"?state=other&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, codes, "a foreign state must not deliver a code")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+"?state=s1&error=access_denied", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, <-errs, "access_denied")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+"?state=s1&code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, codes, 1)
	assert.Equal(t, "abc", <-codes)
}
