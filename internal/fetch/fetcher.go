// Package fetch resolves a placement into a content descriptor using the
// external placement service.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// MaxResponseBytes caps the body read from the placement service.
const MaxResponseBytes = 1 << 20

// Resolution outcomes, used as metric labels.
const (
	OutcomeOK             = "ok"
	OutcomeNoContent      = "no_content"
	OutcomeTransportError = "transport_error"
	OutcomeBadStatus      = "bad_status"
	OutcomeDecodeError    = "decode_error"
	OutcomeMalformed      = "malformed"
)

var tracer = observability.Tracer("fetch")

// Fetcher provides access to the placement service's content-blocks endpoint.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

// envelope is the response body of GET /content-blocks/{placementId}.
type envelope struct {
	Data *models.ContentDescriptor `json:"data"`
}

// NewFetcher creates a Fetcher. timeout bounds a single resolution attempt.
func NewFetcher(baseURL string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger.Named("fetcher"),
		metrics: metrics,
	}
}

// Resolve makes exactly one attempt to resolve placementID. It never returns
// an error: no inventory, transport failures, bad statuses, undecodable
// bodies and malformed descriptors all yield nil.
func (f *Fetcher) Resolve(ctx context.Context, placementID string, targeting *models.TargetingContext) *models.ContentDescriptor {
	ctx, span := tracer.Start(ctx, "Fetcher.Resolve",
		trace.WithAttributes(attribute.String("placement_id", placementID)))
	defer span.End()

	start := time.Now()
	d, outcome, err := f.fetch(ctx, placementID, targeting)
	f.metrics.RecordContentFetchLatency(time.Since(start))
	f.metrics.IncrementContentFetch(outcome)
	span.SetAttributes(attribute.String("fetch.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		// selection unavailable is expected traffic, not a user-facing error
		f.logger.Debug("content unavailable",
			zap.String("placement_id", placementID),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil
	}
	if d == nil {
		return nil
	}
	span.SetAttributes(
		attribute.String("content_id", d.ID),
		attribute.String("delivery_kind", string(d.Kind)),
	)
	return d
}

// fetch performs the request and classifies the result.
func (f *Fetcher) fetch(ctx context.Context, placementID string, targeting *models.TargetingContext) (*models.ContentDescriptor, string, error) {
	endpoint := f.baseURL + "/content-blocks/" + url.PathEscape(placementID)
	if q := targeting.Query(); len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, OutcomeTransportError, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, OutcomeTransportError, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBytes))
		return nil, OutcomeBadStatus, fmt.Errorf("http %d: %w", resp.StatusCode, models.ErrSelectionUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, OutcomeTransportError, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, OutcomeDecodeError, errors.New("response body too large")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, OutcomeDecodeError, fmt.Errorf("decode response: %w", err)
	}
	if env.Data == nil {
		return nil, OutcomeNoContent, nil
	}

	d := env.Data
	if d.PlacementID == "" {
		d.PlacementID = placementID
	}
	if err := d.Validate(); err != nil {
		// fail closed: broken markup is worse than an empty slot
		return nil, OutcomeMalformed, err
	}
	return d, OutcomeOK, nil
}
