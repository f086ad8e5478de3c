package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemik/mnemik/internal/scheduler"
	"github.com/mnemik/mnemik/internal/storage/sqlite"
	"github.com/mnemik/mnemik/pkg/types"
)

func TestItemsSince(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		json.NewEncoder(w).Encode([]Item{
			{ID: "q-1", Type: types.ContentTypeQuestion, UserID: "alice"},
			{ID: "kp-1", Type: types.ContentTypeKnowledgePoint, UserID: "alice"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	since := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	items, err := client.ItemsSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "q-1", items[0].ID)
	assert.Equal(t, "2025-03-10T09:00:00Z", gotSince)
}

func TestItemsSinceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ItemsSince(context.Background(), time.Time{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.ItemsSince(ctx, time.Time{})
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, 3, calls)

	// Breaker is now open: the server must not be hit again.
	_, err := client.ItemsSince(ctx, time.Time{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestSyncOnceSchedulesNewItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Item{
			{ID: "q-1", Type: types.ContentTypeQuestion, UserID: "alice"},
			{ID: "q-1", Type: types.ContentTypeQuestion, UserID: "alice"}, // duplicate in feed
			{ID: "q-2", Type: types.ContentTypeQuestion, UserID: "bob"},
			{ID: "bad", Type: types.ContentType("essay"), UserID: "alice"},
		})
	}))
	defer srv.Close()

	store, err := sqlite.NewReviewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sched := scheduler.NewService(store)

	syncer := NewSyncer(NewClient(srv.URL), sched, time.Minute)
	n := syncer.SyncOnce(context.Background())
	assert.Equal(t, 3, n, "duplicate is a no-op success, invalid type is skipped")

	due, err := sched.ListDue(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	// A second sync of the same feed schedules nothing new.
	syncer.SyncOnce(context.Background())
	due, err = sched.ListDue(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
