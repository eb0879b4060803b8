package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slogx.NewWithWriter(&buf, slogx.Config{Format: "json", Level: "debug"})

	logger.Info("passcode setup",
		"user_id", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV",
		"passcode", "123456",
		slog.Group("req", "Code", "654321", "path", "/v1/withdrawal/otp/verify"),
	)

	out := buf.String()
	require.NotContains(t, out, "123456")
	require.NotContains(t, out, "654321")
	require.Contains(t, out, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")
	require.Contains(t, out, "/v1/withdrawal/otp/verify")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "[REDACTED]", entry["passcode"])
}

func TestIsSensitive(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"password", "Current_Password", "otp", "secret", "recovery_code"} {
		require.True(t, slogx.IsSensitive(k), k)
	}
	for _, k := range []string{"user_id", "attempts", "locked", "purpose"} {
		require.False(t, slogx.IsSensitive(k), k)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vaultgate.log")

	l, err := slogx.New(slogx.Config{Service: "vaultgate", Env: "test", File: path})
	require.NoError(t, err)
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) })

	l.Info("hello")
	require.NoError(t, l.Close())
	require.FileExists(t, path)
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slogx.NewWithWriter(&buf, slogx.Config{Format: "json"})

	var sawLogger bool
	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = slogx.FromContext(r.Context()) != slog.Default()
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, sawLogger)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["msg"])
	require.Equal(t, "req-123", entry["req_id"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
}
