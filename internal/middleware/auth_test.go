package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	valid := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    "giddyapp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "elsewhere"
	badSubject := valid
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), valid), http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "auth_required"},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, "auth_invalid_scheme"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), http.StatusUnauthorized, "auth_invalid"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), expired), http.StatusUnauthorized, "auth_invalid"},
		{"wrong issuer", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), wrongIssuer), http.StatusUnauthorized, "auth_invalid"},
		{"subject not a uuid", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), badSubject), http.StatusUnauthorized, "auth_invalid"},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, "auth_invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			handler := RequireAuth(AuthConfig{Secret: testJWTSecret, Issuer: "giddyapp"})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got, _ = GetUserID(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodPost, "/payments/create-intent", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
				return
			}
			assert.Equal(t, userID, got)
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	_, ok := GetUserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
