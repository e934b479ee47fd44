package docling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/common"
)

// apiPrefix is the version prefix the upstream converter mounts its
// endpoints under.
const apiPrefix = "/v1alpha"

// Service proxies document conversion requests to the Docling API. Requests
// and responses pass through byte for byte; the only local policy is the
// per-endpoint timeout and the translation of transport failures into
// gateway status codes.
type Service struct {
	baseURL string
	client  *http.Client
	config  common.DoclingConfig
	logger  arbor.ILogger
}

// NewService creates a docling proxy service
func NewService(config common.DoclingConfig, logger arbor.ILogger) *Service {
	return &Service{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		// Per-request deadlines come from the proxy call context, not the
		// client, so one shared client serves every endpoint.
		client: &http.Client{},
		config: config,
		logger: logger,
	}
}

// ConvertFile proxies a multipart file upload for synchronous conversion
func (s *Service) ConvertFile(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, apiPrefix+"/convert/file", s.config.DefaultTimeout, nil)
}

// ConvertSource proxies a URL-based synchronous conversion request
func (s *Service) ConvertSource(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, apiPrefix+"/convert/source", s.config.DefaultTimeout, nil)
}

// ConvertSourceAsync proxies an asynchronous conversion submission
func (s *Service) ConvertSourceAsync(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, apiPrefix+"/convert/source/async", s.config.AsyncTimeout, nil)
}

// PollStatus proxies a task status poll. The upstream supports long polling
// via the wait query parameter, so the proxy deadline must outlast it.
func (s *Service) PollStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	wait := 0.0
	if raw := r.URL.Query().Get("wait"); raw != "" {
		fmt.Sscanf(raw, "%f", &wait)
	}

	timeout := time.Duration(wait+5) * time.Second
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}

	var params url.Values
	if wait > 0 {
		params = url.Values{"wait": {fmt.Sprintf("%g", wait)}}
	}
	s.proxy(w, r, apiPrefix+"/status/poll/"+url.PathEscape(taskID), timeout, params)
}

// FetchResult proxies retrieval of a completed task's result
func (s *Service) FetchResult(w http.ResponseWriter, r *http.Request, taskID string) {
	s.proxy(w, r, apiPrefix+"/result/"+url.PathEscape(taskID), s.config.ResultTimeout, nil)
}

func (s *Service) proxy(w http.ResponseWriter, r *http.Request, endpoint string, timeout time.Duration, params url.Values) {
	target := s.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var body io.Reader
	if r.Method == http.MethodPost {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		s.logger.Error().Err(err).Str("target", target).Msg("Failed to build proxy request")
		s.writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	s.logger.Info().
		Str("method", r.Method).
		Str("target", target).
		Dur("timeout", timeout).
		Msg("Proxying document request")

	resp, err := s.client.Do(req)
	if err != nil {
		status, msg := classifyUpstreamError(err)
		s.logger.Error().Err(err).Str("target", target).Msg("Upstream document request failed")
		s.writeError(w, status, msg)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("Failed streaming upstream response")
	}
}

// classifyUpstreamError maps transport failures onto gateway status codes so
// callers can distinguish an unreachable converter from a slow one.
func classifyUpstreamError(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "document service timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "document service timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return http.StatusServiceUnavailable, "document service unavailable"
	}
	if errors.Is(err, context.Canceled) {
		// Client went away. The status code is moot but pick one anyway.
		return http.StatusBadGateway, "request cancelled"
	}
	return http.StatusBadGateway, "error communicating with document service"
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
