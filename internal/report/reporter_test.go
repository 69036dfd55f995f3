package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.EngagementEvent
	err    error
	block  chan struct{}
	panics bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(ctx context.Context, ev models.EngagementEvent) error {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func flush(t *testing.T, r *Reporter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Flush(ctx))
}

var testDescriptor = &models.ContentDescriptor{ID: "cb-1", CampaignID: "c-1", PlacementID: "search-top"}

func TestReportNilDescriptorIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	metrics := observability.NewMockMetricsRegistry()
	r := NewReporter(time.Second, zap.NewNop(), metrics, sink)

	r.Report(models.EventExposure, nil, models.DeviceDesktop, "de-DE")
	flush(t, r)

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, metrics.Count("engagement:EXPOSURE"))
}

func TestReportDoesNotDeduplicate(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(time.Second, zap.NewNop(), nil, sink)

	r.Report(models.EventInteraction, testDescriptor, models.DeviceMobile, "de-DE")
	r.Report(models.EventInteraction, testDescriptor, models.DeviceMobile, "de-DE")
	flush(t, r)

	assert.Equal(t, 2, sink.count())
}

func TestReportDoesNotBlock(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	r := NewReporter(time.Second, zap.NewNop(), nil, sink)

	done := make(chan struct{})
	go func() {
		r.Report(models.EventExposure, testDescriptor, models.DeviceTablet, "en-GB")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked on a slow sink")
	}

	close(sink.block)
	flush(t, r)
	assert.Equal(t, 1, sink.count())
}

func TestReportSwallowsSinkFailures(t *testing.T) {
	failing := &recordingSink{err: errors.New("unreachable")}
	panicking := &recordingSink{panics: true}
	healthy := &recordingSink{}
	metrics := observability.NewMockMetricsRegistry()
	r := NewReporter(time.Second, zap.NewNop(), metrics, failing, panicking, healthy)

	r.Report(models.EventExposure, testDescriptor, models.DeviceDesktop, "de-DE")
	flush(t, r)

	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, metrics.Count("report_failure:recording"))
	assert.Equal(t, 1, metrics.Count("engagement:EXPOSURE"))
}

func TestFlushHonoursContext(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	r := NewReporter(time.Second, zap.NewNop(), nil, sink)
	r.Report(models.EventExposure, testDescriptor, models.DeviceDesktop, "de-DE")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Flush(ctx), context.DeadlineExceeded)
	close(sink.block)
	flush(t, r)
}

func TestReportConcurrentWithFlush(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(time.Second, zap.NewNop(), nil, sink)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Report(models.EventInteraction, testDescriptor, models.DeviceMobile, "de-DE")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Flush(context.Background())
			}
		}()
	}
	wg.Wait()
	flush(t, r)

	assert.Equal(t, 400, sink.count())
}

func TestCloseDropsLateReports(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(time.Second, zap.NewNop(), nil, sink)

	r.Report(models.EventExposure, testDescriptor, models.DeviceDesktop, "de-DE")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	assert.Equal(t, 1, sink.count())

	r.Report(models.EventInteraction, testDescriptor, models.DeviceDesktop, "de-DE")
	flush(t, r)
	assert.Equal(t, 1, sink.count())
}

func TestHTTPSinkPostsEngageBody(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		got  models.EngageRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	r := NewReporter(time.Second, zap.NewNop(), nil, NewHTTPSink(server.URL))
	r.Report(models.EventExposure, testDescriptor, models.DeviceMobile, "nl-NL")
	flush(t, r)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/content-blocks/cb-1/engage", path)
	assert.Equal(t, models.EngageRequest{EventType: "IMPRESSION", Device: "mobile", Locale: "nl-NL"}, got)
}

func TestHTTPSinkNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewHTTPSink(server.URL).Send(context.Background(), models.EngagementEvent{Type: models.EventInteraction, ContentID: "x"})
	assert.Error(t, err)

	metrics := observability.NewMockMetricsRegistry()
	r := NewReporter(time.Second, zap.NewNop(), metrics, NewHTTPSink(server.URL))
	r.Report(models.EventInteraction, testDescriptor, models.DeviceUnknown, "")
	flush(t, r)
	assert.Equal(t, 1, metrics.Count("report_failure:http"))
}
