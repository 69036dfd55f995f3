// Package report emits engagement events. Reporting is fire-and-forget: Report
// returns immediately and every failure is swallowed.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// DefaultTimeout bounds a single sink delivery.
const DefaultTimeout = 5 * time.Second

// Sink delivers one engagement event somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev models.EngagementEvent) error
}

// Reporter fans each event out to its sinks on detached goroutines. It does
// no deduplication: calling Report twice reports twice. Flush and Close may
// run concurrently with Report.
type Reporter struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	metrics observability.MetricsRegistry

	mu      sync.Mutex
	pending int
	idle    []chan struct{}
	closed  bool
}

// NewReporter creates a Reporter for the given sinks.
func NewReporter(timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry, sinks ...Sink) *Reporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Reporter{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.Named("reporter"),
		metrics: metrics,
	}
}

// Report emits eventType for d. It never blocks on delivery and never
// surfaces an error. A nil descriptor is ignored.
func (r *Reporter) Report(eventType models.EventType, d *models.ContentDescriptor, device models.DeviceClass, locale string) {
	ev, ok := models.NewEngagementEvent(eventType, d, device, locale)
	if !ok {
		return
	}
	r.metrics.IncrementEngagement(string(eventType))
	if observability.ShouldSample(observability.GetSamplingRate()) {
		r.logger.Info("engagement",
			zap.String("event_type", string(eventType)),
			zap.String("content_id", ev.ContentID),
			zap.String("placement_id", ev.PlacementID),
			zap.String("device", string(device)))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Debug("engagement after close dropped",
			zap.String("event_type", string(eventType)),
			zap.String("content_id", ev.ContentID))
		return
	}
	r.pending += len(r.sinks)
	r.mu.Unlock()

	for _, s := range r.sinks {
		go r.deliver(s, ev)
	}
}

func (r *Reporter) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if r.pending == 0 {
		for _, ch := range r.idle {
			close(ch)
		}
		r.idle = nil
	}
}

func (r *Reporter) deliver(s Sink, ev models.EngagementEvent) {
	defer r.done()
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncrementReportFailures(s.Name())
			r.logger.Warn("engagement sink panicked", zap.String("sink", s.Name()), zap.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := s.Send(ctx, ev); err != nil {
		r.metrics.IncrementReportFailures(s.Name())
		r.logger.Debug("engagement report dropped",
			zap.String("sink", s.Name()),
			zap.String("content_id", ev.ContentID),
			zap.Error(fmt.Errorf("%w: %v", models.ErrReportingFailure, err)))
	}
}

// Flush waits until no delivery is in flight or ctx is done. Reports made
// while Flush waits extend the wait.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.pending == 0 {
		r.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	r.idle = append(r.idle, ch)
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting reports and flushes the ones in flight. Reports made
// after Close are dropped. Used on shutdown.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Flush(ctx)
}
