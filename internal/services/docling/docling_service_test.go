package docling

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/common"
)

func testService(baseURL string) *Service {
	return NewService(common.DoclingConfig{
		BaseURL:        baseURL,
		DefaultTimeout: 2 * time.Second,
		AsyncTimeout:   2 * time.Second,
		ResultTimeout:  2 * time.Second,
	}, arbor.NewLogger())
}

func TestProxyPassesThroughResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1alpha/convert/source", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"source":"https://example.com/doc.pdf"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"document":"converted"}`))
	}))
	defer upstream.Close()

	svc := testService(upstream.URL)

	req := httptest.NewRequest("POST", "/api/document/convert/source",
		strings.NewReader(`{"source":"https://example.com/doc.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	svc.ConvertSource(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"document":"converted"}`, rec.Body.String())
}

func TestProxyPreservesUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"bad document"}`))
	}))
	defer upstream.Close()

	svc := testService(upstream.URL)

	req := httptest.NewRequest("POST", "/api/document/convert/file", strings.NewReader("data"))
	rec := httptest.NewRecorder()

	svc.ConvertFile(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad document")
}

func TestProxyUnreachableUpstreamIs503(t *testing.T) {
	// A closed server gives a connection-refused error
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	svc := testService(upstream.URL)

	req := httptest.NewRequest("POST", "/api/document/convert/source", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	svc.ConvertSource(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestProxySlowUpstreamIs504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer upstream.Close()

	svc := NewService(common.DoclingConfig{
		BaseURL:        upstream.URL,
		DefaultTimeout: 50 * time.Millisecond,
		AsyncTimeout:   50 * time.Millisecond,
		ResultTimeout:  50 * time.Millisecond,
	}, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/api/document/convert/source", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	svc.ConvertSource(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestPollStatusForwardsWaitParameter(t *testing.T) {
	var gotPath, gotWait string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWait = r.URL.Query().Get("wait")
		w.Write([]byte(`{"task_status":"success"}`))
	}))
	defer upstream.Close()

	svc := testService(upstream.URL)

	req := httptest.NewRequest("GET", "/api/document/status/poll/task-1?wait=10", nil)
	rec := httptest.NewRecorder()

	svc.PollStatus(rec, req, "task-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1alpha/status/poll/task-1", gotPath)
	assert.Equal(t, "10", gotWait)
}

func TestFetchResultPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1alpha/result/task-9", r.URL.Path)
		w.Write([]byte(`{"document":{}}`))
	}))
	defer upstream.Close()

	svc := testService(upstream.URL)

	req := httptest.NewRequest("GET", "/api/document/result/task-9", nil)
	rec := httptest.NewRecorder()

	svc.FetchResult(rec, req, "task-9")

	assert.Equal(t, http.StatusOK, rec.Code)
}
