package ocr

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/collaborators"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/retry"
)

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	guard := collaborators.NewGuard(Name, collaborators.GuardConfig{
		Retry: retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2},
	}, collaborators.WithGuardLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	c, err := New(url, guard)
	require.NoError(t, err)
	return c
}

func TestRecognize(t *testing.T) {
	src := models.Source{Filename: "scan.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nimage")}

	t.Run("posts the file and returns page texts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				http.Error(w, "no file", http.StatusBadRequest)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, src.Data, data)
			assert.Equal(t, "scan.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"pages":[{"text":"Справка"},{"text":"стр. 2"}]}`))
		}))
		defer server.Close()

		res, err := newClient(t, server.URL).Recognize(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, []string{"Справка", "стр. 2"}, res.Pages)
	})

	t.Run("retries a 503 and succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "warming up", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"pages":[{"text":"ok"}]}`))
		}))
		defer server.Close()

		res, err := newClient(t, server.URL).Recognize(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, res.Pages)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("unparseable reply is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>gateway</html>`))
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Recognize(context.Background(), src)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrMalformedResponse)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "bad file", http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Recognize(context.Background(), src)
		require.Error(t, err)
		assert.Equal(t, collaborators.CategoryRejected, collaborators.CategoryOf(err))
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("", nil)
	require.Error(t, err)
}
