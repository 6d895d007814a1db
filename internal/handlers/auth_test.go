package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func (app *testApp) postJSON(t *testing.T, target string, payload map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return app.do(t, req)
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	rec, body := app.postJSON(t, "/api/auth/register", map[string]string{
		"name":     "Tani",
		"email":    "TANI@Example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]interface{})
	require.Equal(t, "tani@example.com", data["email"])
	require.NotEmpty(t, data["token"])
	require.NotEmpty(t, data["refresh_token"])
	require.Equal(t, float64(3600), data["expires_in"])

	// Same address again, regardless of case, is a conflict.
	rec, _ = app.postJSON(t, "/api/auth/register", map[string]string{
		"name":     "Tani Dua",
		"email":    "tani@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, body = app.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "tani@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]interface{})
	require.NotEmpty(t, data["token"])

	rec, _ = app.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "tani@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"bad_email", map[string]string{"name": "A", "email": "not-an-email", "password": "secret123"}},
		{"short_password", map[string]string{"name": "A", "email": "a@example.com", "password": "12345"}},
		{"missing_fields", map[string]string{"email": "a@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := app.postJSON(t, "/api/auth/register", tc.payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, false, body["success"])
		})
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := app.registerUser(t, "me@example.com")
	rec2, body := app.do(t, authedGet(token, "/api/auth/profile"))
	require.Equal(t, http.StatusOK, rec2.Code)
	data := body["data"].(map[string]interface{})
	require.Equal(t, "me@example.com", data["email"])
	require.NotContains(t, data, "password")
}

func TestRefreshRotatesToken(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "rotate@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, body := app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	newToken := data["token"].(string)
	require.NotEmpty(t, newToken)
	require.NotEqual(t, token, newToken)

	// The old access token's session row is gone; refreshing on it fails.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ = app.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutDeletesSession(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "bye@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Without a stored session there is no refresh token to rotate.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ = app.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec, body := app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
}
