package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/render"
	"github.com/patrickwarner/slotengine/internal/slot"
	"github.com/patrickwarner/slotengine/internal/targeting"
	"github.com/patrickwarner/slotengine/internal/viewability"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageBytes = 4096
	// visibility messages are frequent; log a sample of them
	visibilityLogRate = 0.01
)

// Socket message types.
const (
	msgRender     = "render"
	msgState      = "state"
	msgNavigate   = "navigate"
	msgVisibility = "visibility"
	msgClick      = "click"
)

// serverMessage is sent from the daemon to the host page.
type serverMessage struct {
	Type   string `json:"type"`
	Slot   string `json:"slot"`
	State  string `json:"state,omitempty"`
	Mode   string `json:"mode,omitempty"`
	HTML   string `json:"html,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	URL    string `json:"url,omitempty"`
	Target string `json:"target,omitempty"`
}

// clientMessage is sent from the host page to the daemon.
type clientMessage struct {
	Type  string   `json:"type"`
	Ratio *float64 `json:"ratio,omitempty"`
}

// socketHost adapts a slot socket to slot.Host and slot.Navigator.
type socketHost struct {
	conn   *websocket.Conn
	slotID string
	feed   *viewability.Feed
	logger *zap.Logger

	writeMu sync.Mutex
}

func (h *socketHost) send(msg serverMessage) {
	msg.Slot = h.slotID
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := h.conn.WriteJSON(msg); err != nil {
		h.logger.Debug("slot socket write", zap.Error(err), zap.String("type", msg.Type))
	}
}

func (h *socketHost) Render(state slot.State, p render.Presentation) {
	h.send(serverMessage{
		Type:   msgRender,
		State:  string(state),
		Mode:   string(p.Mode),
		HTML:   p.HTML,
		Width:  p.Width,
		Height: p.Height,
	})
}

func (h *socketHost) StateChanged(state slot.State) {
	h.send(serverMessage{Type: msgState, State: string(state)})
}

func (h *socketHost) Root() viewability.Source { return h.feed }

// Open asks the page to open url in a new browsing context.
func (h *socketHost) Open(url string) {
	h.send(serverMessage{Type: msgNavigate, URL: url, Target: "_blank"})
}

// mountRequest builds the slot request from the mount URL.
func (s *Server) mountRequest(r *http.Request, placementID string) slot.Request {
	q := r.URL.Query()
	req := slot.Request{
		InstanceID:  uuid.NewString(),
		PlacementID: placementID,
		Targeting:   targeting.FromRequest(r, s.Geo),
		Fallback:    q.Get("fallback"),
		Device:      targeting.Device(r),
		Locale:      targeting.Locale(r),
	}
	req.Width, _ = strconv.Atoi(q.Get("w"))
	req.Height, _ = strconv.Atoi(q.Get("h"))
	if req.Width <= 0 || req.Height <= 0 {
		if pl, ok := s.Placements.Get(placementID); ok {
			req.Width, req.Height = pl.Width, pl.Height
		}
	}
	return req
}

// MountHandler upgrades GET /slots/{placementId}/mount to a socket. The
// socket's lifetime is the slot instance's lifetime.
func (s *Server) MountHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/slots/mount"
	const method = "GET"

	placementID := mux.Vars(r)["placementId"]
	logger := middleware.LoggerFromRequest(r, s.Logger)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logger.Debug("slot socket upgrade", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		return
	}
	defer func() { _ = conn.Close() }()

	req := s.mountRequest(r, placementID)
	logger = logger.With(zap.String("slot_id", req.InstanceID), zap.String("placement_id", placementID))
	s.Metrics.IncrementRequests(endpoint, method, "101")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	s.Metrics.IncrementMounts(targeting.UADeviceFamily(r.UserAgent()))

	ctx, span := tracer.Start(r.Context(), "SlotMount",
		trace.WithAttributes(
			attribute.String("placement_id", placementID),
			attribute.String("slot_id", req.InstanceID),
			attribute.String("device", string(req.Device)),
		))
	defer span.End()

	host := &socketHost{
		conn:   conn,
		slotID: req.InstanceID,
		feed:   viewability.NewFeed(),
		logger: logger,
	}
	ctrl := slot.Mount(ctx, host, req, s.SlotDeps)
	s.register(ctrl)
	defer func() {
		s.unregister(ctrl.ID())
		ctrl.Unmount()
		span.SetAttributes(attribute.String("final_state", string(ctrl.State())))
		logger.Debug("slot unmounted", zap.String("state", string(ctrl.State())))
	}()

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(host, done)

	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("slot socket closed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case msgVisibility:
			if msg.Ratio == nil {
				continue
			}
			if observability.ShouldSample(visibilityLogRate) {
				logger.Debug("visibility", zap.Float64("ratio", *msg.Ratio))
			}
			host.feed.Push(*msg.Ratio)
		case msgClick:
			ctrl.Click(host)
		default:
			logger.Debug("unknown slot message", zap.String("type", msg.Type))
		}
	}
}

// keepAlive pings the page until done is closed.
func (s *Server) keepAlive(h *socketHost, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
