package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	hashed, err := HashToken("secret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "secret", "secret", http.StatusNoContent},
		{"wrong token", "secret", "guess", http.StatusUnauthorized},
		{"missing token", "secret", "", http.StatusUnauthorized},
		{"admin disabled", "", "", http.StatusUnauthorized},
		{"hashed token matches", hashed, "secret", http.StatusNoContent},
		{"hashed token rejects guess", hashed, "guess", http.StatusUnauthorized},
		{"hash itself is not the token", hashed, hashed, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAdminToken(tt.expected, slog.New(slog.DiscardHandler))(ok)
			req := httptest.NewRequest(http.MethodGet, "/admin/breakers", nil)
			if tt.sent != "" {
				req.Header.Set(TokenHeader, tt.sent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHashTokenRejectsEmpty(t *testing.T) {
	_, err := HashToken("")
	require.Error(t, err)
}
