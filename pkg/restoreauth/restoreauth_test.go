package restoreauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func TestIssueAndValidateToken(t *testing.T) {
	auth, err := New(testSecret, "")
	require.NoError(t, err)

	token, err := auth.IssueToken("operator-1", time.Minute)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "operator-1", claims.Subject)
	require.Equal(t, "vigil-server", claims.Issuer)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth, err := New(testSecret, "")
	require.NoError(t, err)

	token, err := auth.IssueToken("operator-1", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := New("too-short", "")
	require.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	auth, err := New(testSecret, "")
	require.NoError(t, err)

	ok := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/File/List.json", nil)
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.IssueToken("operator-1", time.Minute)
	require.NoError(t, err)
	req2 := httptest.NewRequest(http.MethodGet, "/File/List.json", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	ok.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}
