package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/queue/workers"
	"github.com/g2i/hub/internal/services/devskiller"
)

func newDevSkillerHandler() (*DevSkillerHandler, *devskiller.CookieStore, *fakeQueue) {
	store := devskiller.NewCookieStore(newFakeCredentialStore(), 0, arbor.NewLogger())
	q := &fakeQueue{}
	return NewDevSkillerHandler(store, q, arbor.NewLogger()), store, q
}

func TestRefreshHandlerAcceptsAndEnqueues(t *testing.T) {
	handler, store, q := newDevSkillerHandler()

	req := httptest.NewRequest("POST", "/api/devskiller/refresh", nil)
	rec := httptest.NewRecorder()

	handler.RefreshHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "processing", body["status"])

	msgs := q.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, workers.JobTypeCookieRefresh, msgs[0].Type)
	assert.NotEmpty(t, msgs[0].DedupID)

	// Status must already read as processing before any worker runs
	status, err := store.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "processing", string(status.Status))
}

func TestRefreshHandlerAllowsGet(t *testing.T) {
	handler, _, _ := newDevSkillerHandler()

	req := httptest.NewRequest("GET", "/api/devskiller/refresh", nil)
	rec := httptest.NewRecorder()

	handler.RefreshHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRefreshHandlerRejectsOtherMethods(t *testing.T) {
	handler, _, q := newDevSkillerHandler()

	req := httptest.NewRequest("DELETE", "/api/devskiller/refresh", nil)
	rec := httptest.NewRecorder()

	handler.RefreshHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, q.messages())
}

func TestStatusHandlerNeverRun(t *testing.T) {
	handler, _, _ := newDevSkillerHandler()

	req := httptest.NewRequest("GET", "/api/devskiller/status", nil)
	rec := httptest.NewRecorder()

	handler.StatusHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandlerAfterComplete(t *testing.T) {
	handler, store, _ := newDevSkillerHandler()
	require.NoError(t, store.MarkComplete(context.Background()))

	req := httptest.NewRequest("GET", "/api/devskiller/status", nil)
	rec := httptest.NewRecorder()

	handler.StatusHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "complete", body["status"])
	assert.NotEmpty(t, body["last_updated"])
}

func TestStatusHandlerAfterError(t *testing.T) {
	handler, store, _ := newDevSkillerHandler()
	require.NoError(t, store.MarkError(context.Background(), "login failed"))

	req := httptest.NewRequest("GET", "/api/devskiller/status", nil)
	rec := httptest.NewRecorder()

	handler.StatusHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "login failed", body["error"])
}
