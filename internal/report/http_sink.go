package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/patrickwarner/slotengine/internal/models"
)

// HTTPSink posts events to the placement service's engage endpoint.
type HTTPSink struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSink creates an HTTPSink for the placement service at baseURL.
func NewHTTPSink(baseURL string) *HTTPSink {
	return &HTTPSink{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Send posts ev to /content-blocks/{contentId}/engage. The response body is
// discarded; only a non-2xx status counts as failure.
func (s *HTTPSink) Send(ctx context.Context, ev models.EngagementEvent) error {
	body, err := json.Marshal(ev.WireRequest())
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := s.baseURL + "/content-blocks/" + url.PathEscape(ev.ContentID) + "/engage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}
