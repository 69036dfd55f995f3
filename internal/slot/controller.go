// Package slot orchestrates a single mounted slot: it fetches content, renders
// it, tracks viewability and reports engagement exactly as often as allowed.
package slot

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/clock"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/render"
	"github.com/patrickwarner/slotengine/internal/viewability"
)

// Resolver resolves the descriptor for a placement. It never fails: nil means
// nothing to show.
type Resolver interface {
	Resolve(ctx context.Context, placementID string, targeting *models.TargetingContext) *models.ContentDescriptor
}

// Reporter sends engagement events without blocking the caller.
type Reporter interface {
	Report(eventType models.EventType, d *models.ContentDescriptor, device models.DeviceClass, locale string)
}

// Host is the embedding surface of one slot instance.
type Host interface {
	// Render replaces the slot's presentation. It is never called with the
	// controller lock held, so a slow host only delays its own instance.
	Render(state State, p render.Presentation)
	// Root is the visibility source of the rendered root element.
	Root() viewability.Source
}

// StateListener is implemented by hosts that want transitions that do not
// change the presentation, such as RENDERED to EXPOSED.
type StateListener interface {
	StateChanged(state State)
}

// Navigator opens a destination in a new navigation context.
type Navigator interface {
	Open(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

// Open calls f(url).
func (f NavigatorFunc) Open(url string) { f(url) }

// Request is what the host page supplies when mounting a slot.
type Request struct {
	// InstanceID names this mount. Empty assigns a random id.
	InstanceID  string
	PlacementID string
	Targeting   *models.TargetingContext
	// Fallback is shown verbatim when there is no content.
	Fallback string
	Device   models.DeviceClass
	Locale   string
	// Width and Height size the loading placeholder.
	Width  int
	Height int
}

// Deps are the collaborators shared by every slot in a process. None of them
// hold per-slot state.
type Deps struct {
	Resolver    Resolver
	Reporter    Reporter
	Clock       clock.Clock
	Viewability viewability.Config
	Logger      *zap.Logger
	Metrics     observability.MetricsRegistry
	// ClickHref, if set, builds the anchor href for clickable units, e.g. a
	// signed redirect through the daemon.
	ClickHref func(instanceID string, d *models.ContentDescriptor) string
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewNoOpRegistry()
	}
	if d.Reporter == nil {
		d.Reporter = nopReporter{}
	}
	return d
}

type nopReporter struct{}

func (nopReporter) Report(models.EventType, *models.ContentDescriptor, models.DeviceClass, string) {}

// Controller is one mounted slot instance. All of its state is owned by the
// instance; two controllers for the same placement never share anything.
type Controller struct {
	id     string
	req    Request
	deps   Deps
	host   Host
	cancel context.CancelFunc
	ready  chan struct{}

	mu        sync.Mutex
	state     State
	exposure  models.ExposureState
	content   *models.ContentDescriptor
	tracker   *viewability.Tracker
	unmounted bool
}

// Mount renders the placeholder, enters LOADING and starts the single fetch
// for req.PlacementID. It returns immediately.
func Mount(ctx context.Context, host Host, req Request, deps Deps) *Controller {
	deps = deps.withDefaults()
	fetchCtx, cancel := context.WithCancel(ctx)
	id := req.InstanceID
	if id == "" {
		id = uuid.NewString()
	}
	c := &Controller{
		id:       id,
		req:      req,
		deps:     deps,
		host:     host,
		cancel:   cancel,
		ready:    make(chan struct{}),
		state:    StateLoading,
		exposure: models.ExposureState{IsLoading: true},
	}

	// load has not started, so nothing else can write to the host yet
	c.host.Render(StateLoading, render.Placeholder(req.Width, req.Height))

	deps.Metrics.SlotMounted()
	deps.Metrics.IncrementStateTransition(string(StateLoading))

	go c.load(fetchCtx)
	return c
}

func (c *Controller) load(ctx context.Context) {
	defer close(c.ready)

	var d *models.ContentDescriptor
	if c.deps.Resolver != nil {
		d = c.deps.Resolver.Resolve(ctx, c.req.PlacementID, c.req.Targeting)
	}

	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.exposure.IsLoading = false

	var p render.Presentation
	if d != nil && d.Validate() == nil {
		opts := render.Options{Fallback: c.req.Fallback}
		if c.deps.ClickHref != nil && d.Clickable() {
			opts.ClickHref = c.deps.ClickHref(c.id, d)
		}
		p = render.Choose(d, opts)
	}
	if !p.Mode.ShowsContent() {
		// nothing presentable is the same as no content: no tracker, no reports
		c.exposure.LastError = models.ErrSelectionUnavailable
		c.setStateLocked(StateEmpty)
		c.mu.Unlock()

		c.deps.Logger.Debug("slot empty",
			zap.String("slot_id", c.id),
			zap.String("placement_id", c.req.PlacementID))
		c.host.Render(StateEmpty, render.Choose(nil, render.Options{Fallback: c.req.Fallback}))
		return
	}

	c.content = d
	c.exposure.ContentID = d.ID
	c.setStateLocked(StateRendered)
	c.mu.Unlock()

	c.host.Render(StateRendered, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.tracker = viewability.Start(c.host.Root(), c.deps.Clock, c.deps.Viewability, c.onViewed)
}

// onViewed runs on the tracker's timer goroutine.
func (c *Controller) onViewed() {
	c.mu.Lock()
	if c.unmounted || c.state != StateRendered || c.exposure.HasFired {
		c.mu.Unlock()
		return
	}
	c.exposure.HasFired = true
	c.setStateLocked(StateExposed)
	d := c.content
	c.mu.Unlock()

	if l, ok := c.host.(StateListener); ok {
		l.StateChanged(StateExposed)
	}

	c.deps.Reporter.Report(models.EventExposure, d, c.req.Device, c.req.Locale)
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.deps.Metrics.IncrementStateTransition(string(s))
}

// Click reports an interaction and opens the destination through nav. It is
// a no-op returning false unless content with a destination is showing.
// Every accepted click is reported; there is no deduplication.
func (c *Controller) Click(nav Navigator) bool {
	c.mu.Lock()
	if c.unmounted || !c.state.Clickable() || !c.content.Clickable() {
		c.mu.Unlock()
		return false
	}
	d := c.content
	c.mu.Unlock()

	c.deps.Reporter.Report(models.EventInteraction, d, c.req.Device, c.req.Locale)
	if nav != nil {
		nav.Open(d.DestinationURL)
	}
	return true
}

// Unmount tears the slot down from any state. The pending fetch is cancelled
// and its result discarded; the visibility subscription and dwell timer are
// released before Unmount returns, so no exposure can be reported afterwards.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	tr := c.tracker
	c.tracker = nil
	c.mu.Unlock()

	c.cancel()
	tr.Stop()
	c.deps.Metrics.SlotUnmounted()
}

// ID is the instance id, unique per mount.
func (c *Controller) ID() string { return c.id }

// PlacementID is the placement this instance was mounted for.
func (c *Controller) PlacementID() string { return c.req.PlacementID }

// Ready is closed once the fetch has completed or been abandoned.
func (c *Controller) Ready() <-chan struct{} { return c.ready }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Exposure returns a snapshot of the instance's exposure state.
func (c *Controller) Exposure() models.ExposureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposure
}

// Content returns the descriptor being shown, or nil.
func (c *Controller) Content() *models.ContentDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Unmounted reports whether Unmount has been called.
func (c *Controller) Unmounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unmounted
}
