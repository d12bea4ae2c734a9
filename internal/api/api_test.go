package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sftpgate/internal/metrics"
	"sftpgate/internal/service"
	"sftpgate/internal/store"
	"sftpgate/internal/toggle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, m *metrics.Metrics) (*API, *toggle.State) {
	t.Helper()

	ctx := context.Background()
	st, err := store.NewStore(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	state := toggle.NewState(t.TempDir())
	svc := service.NewService(ctx, state, st, m, "0.0.0.0", 2222)
	return NewAPI(ctx, svc, st, m, "127.0.0.1:0"), state
}

func doRequest(a *API, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Message
}

func TestHealth(t *testing.T) {
	t.Parallel()

	a, _ := newTestAPI(t, nil)

	w := doRequest(a, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var health healthResponse
	decodeData(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Version)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(0))

	_, err := time.Parse(time.RFC3339, health.Timestamp)
	require.NoError(t, err)
}

func TestToggleLifecycle(t *testing.T) {
	t.Parallel()

	a, state := newTestAPI(t, nil)

	// default body enables with the default window
	w := doRequest(a, http.MethodPost, "/sftp/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)

	var enabled service.ToggleResult
	decodeData(t, w, &enabled)
	assert.Equal(t, "enabled", enabled.Status)
	assert.True(t, enabled.Enabled)
	require.NotNil(t, enabled.Credentials)
	assert.Len(t, enabled.Credentials.Username, 10)
	assert.Len(t, enabled.Credentials.Password, 16)
	assert.True(t, state.IsEnabled())

	w = doRequest(a, http.MethodGet, "/sftp/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status service.StatusResult
	decodeData(t, w, &status)
	assert.True(t, status.Enabled)
	require.NotNil(t, status.ExpiresInSeconds)
	assert.InDelta(t, 30*24*3600, *status.ExpiresInSeconds, 120)

	w = doRequest(a, http.MethodGet, "/sftp/credentials", "")
	require.Equal(t, http.StatusOK, w.Code)

	var creds service.CredentialsResult
	decodeData(t, w, &creds)
	assert.Equal(t, enabled.Credentials.Username, creds.Username)
	assert.Equal(t, enabled.Credentials.Password, creds.Password)
	assert.Equal(t, 2222, creds.Port)
	assert.Equal(t, []string{"0.0.0.0"}, creds.BindAddrs)

	// second toggle flips off
	w = doRequest(a, http.MethodPost, "/sftp/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)

	var disabled service.ToggleResult
	decodeData(t, w, &disabled)
	assert.Equal(t, "disabled", disabled.Status)
	assert.False(t, state.IsEnabled())

	w = doRequest(a, http.MethodGet, "/sftp/credentials", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SFTP is not enabled", decodeMessage(t, w))
}

func TestToggleWithExpirationDays(t *testing.T) {
	t.Parallel()

	a, _ := newTestAPI(t, nil)

	w := doRequest(a, http.MethodPost, "/sftp/toggle", `{"expiration_days": 5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res service.ToggleResult
	decodeData(t, w, &res)
	expiresAt, err := time.Parse(time.RFC3339, res.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*24*time.Hour), expiresAt, time.Minute)
}

func TestToggleRejectsBadInput(t *testing.T) {
	t.Parallel()

	a, _ := newTestAPI(t, nil)

	w := doRequest(a, http.MethodPost, "/sftp/toggle", `{"expiration_days": -3}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(a, http.MethodPost, "/sftp/toggle", `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decodeMessage(t, w))
}

func TestCredentialsExpired(t *testing.T) {
	t.Parallel()

	a, state := newTestAPI(t, nil)
	state.Enable(toggle.Credentials{Username: "olduser000", Password: "oldpassword00000"}, time.Now().Add(-time.Minute))

	w := doRequest(a, http.MethodGet, "/sftp/credentials", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SFTP credentials have expired", decodeMessage(t, w))
	assert.False(t, state.IsEnabled())
}

func TestEvents(t *testing.T) {
	t.Parallel()

	a, _ := newTestAPI(t, nil)

	doRequest(a, http.MethodPost, "/sftp/toggle", "")
	doRequest(a, http.MethodPost, "/sftp/toggle", "")

	w := doRequest(a, http.MethodGet, "/sftp/events", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res eventsResponse
	decodeData(t, w, &res)
	require.Len(t, res.Events, 2)
	assert.Equal(t, store.EventDisabled, res.Events[0].Kind)
	assert.Equal(t, store.EventEnabled, res.Events[1].Kind)

	w = doRequest(a, http.MethodGet, "/sftp/events?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &res)
	assert.Len(t, res.Events, 1)

	w = doRequest(a, http.MethodGet, "/sftp/events?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	a, _ := newTestAPI(t, metrics.New())

	doRequest(a, http.MethodPost, "/sftp/toggle", "")

	w := doRequest(a, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sftpgate_read_bytes_total")
	assert.Contains(t, w.Body.String(), "sftpgate_toggle_total")
}
