package queue_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/queue"
)

func deadLetter(t *testing.T, store *memoryStore, kind, key string) queue.DLQEntry {
	t.Helper()
	raw, err := json.Marshal(struct {
		Kind        string `json:"kind"`
		Key         string `json:"key"`
		Payload     []byte `json:"payload"`
		Attempt     int    `json:"attempt"`
		MaxAttempts int    `json:"max_attempts"`
		AvailableAt int64  `json:"available_at"`
	}{
		Kind:        kind,
		Key:         key,
		Payload:     []byte(`{"bookingId":"b7"}`),
		Attempt:     3,
		MaxAttempts: 3,
		AvailableAt: time.Now().UnixNano(),
	})
	require.NoError(t, err)

	entry := queue.DLQEntry{
		Kind:           kind,
		IdempotencyKey: key,
		Payload:        raw,
		Attempts:       3,
		CreatedAt:      time.Now(),
	}
	entry.ID, err = store.InsertQueueDlq(context.Background(), entry)
	require.NoError(t, err)
	return entry
}

func TestReplayDLQByID(t *testing.T) {
	client := newQueueRedis(t)
	store := newMemoryStore()
	handler := queue.AdminHandler{
		Store:             store,
		Queue:             queue.Enqueuer{R: client, Prefix: "travio", DedupTTL: time.Minute, MaxAttempts: 5},
		PageSize:          10,
		VisibilityTimeout: 60 * time.Second,
	}

	entry := deadLetter(t, store, queue.KindPaymentCapture, "cap-b7")

	body := bytes.NewBufferString(`{"ids":["` + entry.ID.String() + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/queue/dlq/replay", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ReplayDLQ(rr, req)

	res := rr.Result()
	defer func() { _ = res.Body.Close() }()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Replayed []string          `json:"replayed"`
		Failed   map[string]string `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	require.Contains(t, resp.Replayed, entry.ID.String())
	require.Empty(t, resp.Failed)

	depth, err := client.ZCard(context.Background(), "travio:queue:"+queue.KindPaymentCapture).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	_, err = store.GetQueueDlq(context.Background(), entry.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListDLQFiltersByKind(t *testing.T) {
	client := newQueueRedis(t)
	store := newMemoryStore()
	handler := queue.AdminHandler{
		Store:    store,
		Queue:    queue.Enqueuer{R: client, Prefix: "travio"},
		PageSize: 10,
	}

	deadLetter(t, store, queue.KindPaymentCapture, "cap-1")
	deadLetter(t, store, queue.KindBookingNotification, "notify-1")

	req := httptest.NewRequest(http.MethodGet, "/admin/queue/dlq?kind="+queue.KindPaymentCapture, nil)
	rr := httptest.NewRecorder()
	handler.ListDLQ(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []struct {
			Kind           string `json:"kind"`
			IdempotencyKey string `json:"idempotencyKey"`
		} `json:"data"`
		Total int64  `json:"total"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Data, 1)
	require.Equal(t, queue.KindPaymentCapture, resp.Data[0].Kind)
	require.Equal(t, "cap-1", resp.Data[0].IdempotencyKey)
}

func TestReplayDLQRequiresSelector(t *testing.T) {
	client := newQueueRedis(t)
	handler := queue.AdminHandler{
		Store: newMemoryStore(),
		Queue: queue.Enqueuer{R: client, Prefix: "travio"},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/queue/dlq/replay", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	handler.ReplayDLQ(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
