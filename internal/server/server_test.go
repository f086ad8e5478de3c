package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/internal/storage/sqlite"
)

func startTestServer(t *testing.T, mode, token string) string {
	t.Helper()

	store, err := sqlite.NewReviewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Scheduler: config.SchedulerConfig{
			Timezone:            "UTC",
			DueLimit:            storage.DefaultDueLimit,
			ReplayWindowSeconds: 30,
		},
		Security: config.SecurityConfig{SecurityMode: mode, APIToken: token},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := Start(ctx, cfg, store)
	require.NoError(t, err)

	// Wait for the listener to accept connections.
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	return addr
}

func TestServerHealthAndHeaders(t *testing.T) {
	addr := startTestServer(t, "development", "")

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestServerReviewRoundTrip(t *testing.T) {
	addr := startTestServer(t, "development", "")
	base := fmt.Sprintf("http://%s", addr)

	body := bytes.NewBufferString(`{"content_id":"doc-1","content_type":"question"}`)
	req, err := http.NewRequest(http.MethodPost, base+"/api/reviews", body)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "due", rec.Status)

	req, err = http.NewRequest(http.MethodGet, base+"/api/reviews/due", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerProductionRequiresToken(t *testing.T) {
	addr := startTestServer(t, "production", "secret")
	base := fmt.Sprintf("http://%s", addr)

	req, err := http.NewRequest(http.MethodGet, base+"/api/reviews/due", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health endpoint stays open.
	resp, err = http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
