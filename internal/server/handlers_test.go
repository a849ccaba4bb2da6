// internal/server/handlers_test.go
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/dispatcher"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/resolver"
	"cityreport-notifications/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockStore struct {
	listForRecipient func(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	createBatch      func(ctx context.Context, batch []models.Notification) ([]models.Notification, error)
	markRead         func(ctx context.Context, id string) (*models.Notification, error)
	markAllRead      func(ctx context.Context, recipientID string) (int, error)
	deleteFn         func(ctx context.Context, id string) error
}

func (m *mockStore) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if m.listForRecipient == nil {
		return nil, nil
	}
	return m.listForRecipient(ctx, recipientID, limit)
}

func (m *mockStore) CreateBatch(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	if m.createBatch == nil {
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = "generated-id"
			}
			if batch[i].CreatedAt.IsZero() {
				batch[i].CreatedAt = time.Now().UTC()
			}
		}
		return batch, nil
	}
	return m.createBatch(ctx, batch)
}

func (m *mockStore) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	if m.markRead == nil {
		return &models.Notification{ID: id, Read: true}, nil
	}
	return m.markRead(ctx, id)
}

func (m *mockStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	if m.markAllRead == nil {
		return 0, nil
	}
	return m.markAllRead(ctx, recipientID)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

type mockDirectory struct {
	admins  []string
	members []string
	agents  []string
}

func (m *mockDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	return m.admins, nil
}

func (m *mockDirectory) DepartmentMemberIDs(ctx context.Context, departmentID string) ([]string, error) {
	return m.members, nil
}

func (m *mockDirectory) DepartmentAgentIDs(ctx context.Context, departmentID string) ([]string, error) {
	return m.agents, nil
}

func (m *mockDirectory) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return []models.Department{{ID: "dept-1", Name: "Public Works"}}, nil
}

type mockSnapshots struct {
	problem func(ctx context.Context, id string) (*models.ProblemSnapshot, error)
}

func (m *mockSnapshots) Problem(ctx context.Context, id string) (*models.ProblemSnapshot, error) {
	if m.problem == nil {
		return &models.ProblemSnapshot{ID: id, DepartmentID: "dept-1", DepartmentName: "Public Works"}, nil
	}
	return m.problem(ctx, id)
}

type serverFixture struct {
	server *Server
	store  *mockStore
	hub    *stream.Hub
}

func newFixture(t *testing.T) *serverFixture {
	store := &mockStore{}
	hub := stream.NewHub(4)
	dir := &mockDirectory{
		admins:  []string{"admin-1"},
		members: []string{"user-1", "user-2"},
	}
	disp := dispatcher.New(&mockSnapshots{}, resolver.New(dir), store, logger.NewTestLogger(t))

	srv := New(Options{
		Dispatcher:  disp,
		Store:       store,
		Departments: dir,
		Subscriber:  hub,
		Logger:      logger.NewTestLogger(t),
		ListLimit:   50,
	})
	return &serverFixture{server: srv, store: store, hub: hub}
}

func (f *serverFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ==========================
// Dispatch Endpoint Tests
// ==========================

func TestHandleDispatch_Success(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/dispatch", map[string]interface{}{
		"subject_id": "prob-1",
		"kind":       "assigned",
		"actor_id":   "user-2",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["notifications_created"])
	assert.Equal(t, float64(1), body["recipients_notified"])
}

func TestHandleDispatch_MissingFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/dispatch", map[string]interface{}{
		"kind": "assigned",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "subject_id")
}

func TestHandleDispatch_UnknownKind(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/dispatch", map[string]interface{}{
		"subject_id": "prob-1",
		"kind":       "escalated",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDispatch_SubjectNotFound(t *testing.T) {
	f := newFixture(t)
	store := &mockStore{}
	disp := dispatcher.New(&mockSnapshots{
		problem: func(ctx context.Context, id string) (*models.ProblemSnapshot, error) {
			return nil, apperrors.NewEntityNotFoundError(id)
		},
	}, resolver.New(&mockDirectory{}), store, logger.NewTestLogger(t))
	f.server.dispatcher = disp

	rec := f.do(http.MethodPost, "/api/v1/dispatch", map[string]interface{}{
		"subject_id": "ghost",
		"kind":       "assigned",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDispatch_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Notification CRUD Tests
// ==========================

func TestHandleCreate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/notifications", map[string]interface{}{
		"recipient_id": "user-1",
		"title":        "Maintenance tonight",
		"body":         "The console will be briefly unavailable.",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	created := body["notification"].(map[string]interface{})
	assert.Equal(t, "user-1", created["recipientId"])
	assert.Equal(t, "info", created["severity"], "severity defaults to info")
}

func TestHandleCreate_InvalidSeverity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/notifications", map[string]interface{}{
		"recipient_id": "user-1",
		"title":        "t",
		"body":         "b",
		"severity":     "catastrophic",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleList(t *testing.T) {
	f := newFixture(t)
	f.store.listForRecipient = func(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
		assert.Equal(t, "user-1", recipientID)
		return []models.Notification{
			{ID: "n-1", RecipientID: recipientID, CreatedAt: time.Now().UTC()},
		}, nil
	}

	rec := f.do(http.MethodGet, "/api/v1/notifications?recipient_id=user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["notifications"], 1)
}

func TestHandleList_MissingRecipient(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/notifications", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleList_LimitIsCapped(t *testing.T) {
	f := newFixture(t)
	var gotLimit int
	f.store.listForRecipient = func(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
		gotLimit = limit
		return nil, nil
	}

	rec := f.do(http.MethodGet, "/api/v1/notifications?recipient_id=user-1&limit=500", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, gotLimit, "requested limit above the cap falls back to it")

	// An empty result still serializes as an empty array.
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())
}

func TestHandleList_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/notifications?recipient_id=user-1&limit=abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMarkRead(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/v1/notifications/n-1/read", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	n := body["notification"].(map[string]interface{})
	assert.Equal(t, true, n["read"])
}

func TestHandleMarkRead_NotFound(t *testing.T) {
	f := newFixture(t)
	f.store.markRead = func(ctx context.Context, id string) (*models.Notification, error) {
		return nil, apperrors.NewNotFoundError(id)
	}

	rec := f.do(http.MethodPut, "/api/v1/notifications/ghost/read", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMarkAllRead(t *testing.T) {
	f := newFixture(t)
	f.store.markAllRead = func(ctx context.Context, recipientID string) (int, error) {
		assert.Equal(t, "user-1", recipientID)
		return 3, nil
	}

	rec := f.do(http.MethodPut, "/api/v1/notifications/read-all?recipient_id=user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decodeBody(t, rec)["count"])
}

func TestHandleDelete(t *testing.T) {
	f := newFixture(t)
	var deleted string
	f.store.deleteFn = func(ctx context.Context, id string) error {
		deleted = id
		return nil
	}

	rec := f.do(http.MethodDelete, "/api/v1/notifications/n-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "n-1", deleted)
}

func TestHandleDepartments(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/departments", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["departments"], 1)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

// ==========================
// Error Mapping Tests
// ==========================

func TestWriteError_StoreUnavailableIs503(t *testing.T) {
	f := newFixture(t)
	f.store.listForRecipient = func(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
		return nil, apperrors.NewStoreUnavailableError(context.DeadlineExceeded)
	}

	rec := f.do(http.MethodGet, "/api/v1/notifications?recipient_id=user-1", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ==========================
// SSE Stream Tests
// ==========================

func TestHandleStream_MissingRecipient(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/notifications/stream", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream_SnapshotThenRows(t *testing.T) {
	f := newFixture(t)
	f.store.listForRecipient = func(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
		return []models.Notification{
			{ID: "n-1", RecipientID: recipientID, Read: false, CreatedAt: time.Now().UTC()},
		}, nil
	}

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/notifications/stream?recipient_id=user-1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)

	event, data := readSSEvent(t, reader)
	assert.Equal(t, "snapshot", event)
	var snapshot struct {
		Items       []models.Notification `json:"items"`
		UnreadCount int                   `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &snapshot))
	assert.Len(t, snapshot.Items, 1)
	assert.Equal(t, 1, snapshot.UnreadCount)

	// A live insert follows the snapshot on the same connection.
	f.hub.Publish("user-1", stream.RowEvent{
		Kind: stream.EventInsert,
		Notification: models.Notification{
			ID: "n-2", RecipientID: "user-1", Read: false, CreatedAt: time.Now().UTC(),
		},
	})

	event, data = readSSEvent(t, reader)
	assert.Equal(t, "row", event)
	var frame struct {
		Kind        string `json:"kind"`
		UnreadCount int    `json:"unread_count"`
		Age         string `json:"age"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	assert.Equal(t, "insert", frame.Kind)
	assert.Equal(t, 2, frame.UnreadCount)
	assert.Equal(t, "just now", frame.Age)
}

// A stream must keep delivering frames past the server's write timeout; the
// handler clears the write deadline for its connection so the timeout only
// bounds the regular endpoints.
func TestHandleStream_OutlivesServerWriteTimeout(t *testing.T) {
	f := newFixture(t)

	ts := httptest.NewUnstartedServer(f.server.Handler())
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/notifications/stream?recipient_id=user-1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	event, _ := readSSEvent(t, reader)
	require.Equal(t, "snapshot", event)

	// Publish well after the write deadline would have fired.
	time.Sleep(300 * time.Millisecond)
	f.hub.Publish("user-1", stream.RowEvent{
		Kind: stream.EventInsert,
		Notification: models.Notification{
			ID: "n-late", RecipientID: "user-1", Read: false, CreatedAt: time.Now().UTC(),
		},
	})

	event, data := readSSEvent(t, reader)
	assert.Equal(t, "row", event)
	var frame struct {
		Notification models.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	assert.Equal(t, "n-late", frame.Notification.ID)
}

// readSSEvent reads one "event:"/"data:" pair from the SSE stream.
func readSSEvent(t *testing.T, reader *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && event != "":
			return event, data
		}
	}
}
