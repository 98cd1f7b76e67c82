package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		if IsAdmin(r.Context()) {
			w.Header().Set("X-Admin", "true")
		}
		w.Header().Set("X-User", strconv.FormatInt(id, 10))
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	valid, err := IssueToken(testSecret, 7, false, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, 7, false, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", 7, false, time.Hour)
	require.NoError(t, err)
	anonymous, err := IssueToken(testSecret, 0, false, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "auth_required"},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "auth_invalid_scheme"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "auth_invalid"},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, "auth_invalid"},
		{"no user id", "Bearer " + anonymous, http.StatusUnauthorized, "auth_invalid"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "auth_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			RequireAuth(testSecret)(echoUser()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "7", w.Header().Get("X-User"))
			}
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequireAuth_CarriesClaimsIntoContext(t *testing.T) {
	token, err := IssueToken(testSecret, 42, true, time.Hour)
	require.NoError(t, err)

	var gotID int64
	var gotAdmin bool
	h := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		gotAdmin = IsAdmin(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(42), gotID)
	assert.True(t, gotAdmin)
}

func TestRequireAuth_RejectsOtherSigningMethods(t *testing.T) {
	claims := Claims{UserID: 1, IsAdmin: true}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	RequireAuth(testSecret)(echoUser()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		admin      bool
		wantStatus int
	}{
		{"admin", true, http.StatusOK},
		{"regular user", false, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithUser(req.Context(), 3, tt.admin))
			w := httptest.NewRecorder()

			RequireAdmin(echoUser()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetUserID_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := GetUserID(req.Context())

	assert.False(t, ok)
	assert.False(t, IsAdmin(req.Context()))
}
