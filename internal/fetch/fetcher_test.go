package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

func newTestFetcher(url string, metrics observability.MetricsRegistry) *Fetcher {
	return NewFetcher(url, 200*time.Millisecond, zap.NewNop(), metrics)
}

func TestResolveImageDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/content-blocks/search-top" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("fuelType") != "diesel" || q.Get("make") != "skoda" {
			t.Errorf("targeting params not forwarded: %s", r.URL.RawQuery)
		}
		if _, ok := q["bodyType"]; ok {
			t.Errorf("empty targeting attribute should be omitted")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"cb-1","campaignId":"c-7","priority":3,"deliveryKind":"IMAGE_BANNER",
			"image":{"url":"https://cdn.example/b.jpg","width":728,"height":90},
			"destinationUrl":"https://dealer.example/offer","width":728,"height":90}}`))
	}))
	defer server.Close()

	metrics := observability.NewMockMetricsRegistry()
	f := newTestFetcher(server.URL, metrics)
	d := f.Resolve(context.Background(), "search-top", &models.TargetingContext{FuelType: "diesel", Make: "skoda"})
	require.NotNil(t, d)

	assert.Equal(t, "cb-1", d.ID)
	assert.Equal(t, "c-7", d.CampaignID)
	assert.Equal(t, 3, d.Priority)
	assert.Equal(t, models.DeliveryImageBanner, d.Kind)
	assert.Equal(t, "https://cdn.example/b.jpg", d.Image.URL)
	assert.Equal(t, "search-top", d.PlacementID, "placement id stamped when absent")
	assert.True(t, d.Clickable())
	assert.Equal(t, 1, metrics.Count("fetch:ok"))
}

func TestResolveSnippetDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"cb-2","deliveryKind":"EMBEDDED_SNIPPET","snippet":"<div class=\"promo\">hi</div>","placementId":"detail-side"}}`))
	}))
	defer server.Close()

	d := newTestFetcher(server.URL, nil).Resolve(context.Background(), "detail-side", nil)
	require.NotNil(t, d)
	assert.Equal(t, `<div class="promo">hi</div>`, d.Snippet)
	assert.Nil(t, d.Image)
}

func TestResolveFailsSoft(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		outcome string
	}{
		{name: "explicit no content", status: http.StatusOK, body: `{"data":null}`, outcome: OutcomeNoContent},
		{name: "missing data key", status: http.StatusOK, body: `{}`, outcome: OutcomeNoContent},
		{name: "not found", status: http.StatusNotFound, body: `{"data":null}`, outcome: OutcomeBadStatus},
		{name: "server error with valid body", status: http.StatusInternalServerError, body: `{"data":{"id":"x","deliveryKind":"EMBEDDED_SNIPPET","snippet":"<b>"}}`, outcome: OutcomeBadStatus},
		{name: "garbage", status: http.StatusOK, body: `<html>oops`, outcome: OutcomeDecodeError},
		{name: "kind mismatch", status: http.StatusOK, body: `{"data":{"id":"x","deliveryKind":"EMBEDDED_SNIPPET","image":{"url":"https://cdn.example/a.jpg"}}}`, outcome: OutcomeMalformed},
		{name: "both payloads", status: http.StatusOK, body: `{"data":{"id":"x","deliveryKind":"IMAGE_NATIVE","snippet":"<b>","image":{"url":"https://cdn.example/a.jpg"}}}`, outcome: OutcomeMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			metrics := observability.NewMockMetricsRegistry()
			d := newTestFetcher(server.URL, metrics).Resolve(context.Background(), "p", nil)
			assert.Nil(t, d)
			assert.Equal(t, 1, metrics.Count("fetch:"+tc.outcome))
		})
	}
}

func TestResolveOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"x","deliveryKind":"EMBEDDED_SNIPPET","snippet":"`))
		_, _ = w.Write([]byte(strings.Repeat("a", MaxResponseBytes)))
		_, _ = w.Write([]byte(`"}}`))
	}))
	defer server.Close()

	assert.Nil(t, newTestFetcher(server.URL, nil).Resolve(context.Background(), "p", nil))
}

func TestResolveTransportError(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	f := newTestFetcher("http://127.0.0.1:1", metrics)
	assert.Nil(t, f.Resolve(context.Background(), "p", nil))
	assert.Equal(t, 1, metrics.Count("fetch:"+OutcomeTransportError))
}

func TestResolveTimeoutNoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	f := NewFetcher(server.URL, 50*time.Millisecond, zap.NewNop(), nil)
	assert.Nil(t, f.Resolve(context.Background(), "slow", nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one attempt")
}

func TestResolveCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, newTestFetcher(server.URL, nil).Resolve(ctx, "p", nil))
}

func TestResolveEscapesPlacementID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer server.Close()

	newTestFetcher(server.URL+"/", nil).Resolve(context.Background(), "a/b c", nil)
	assert.Equal(t, "/content-blocks/a%2Fb%20c", gotPath)
}
