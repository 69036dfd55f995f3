package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/db"
	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/slot"
	"github.com/patrickwarner/slotengine/internal/targeting"
	"github.com/patrickwarner/slotengine/internal/token"
)

var tracer = observability.Tracer("api")

// Server groups dependencies for HTTP handlers and tracks the live slot
// instances so click-throughs can reach the instance that rendered them.
type Server struct {
	Logger      *zap.Logger
	Config      config.Config
	Metrics     observability.MetricsRegistry
	Placements  models.PlacementStore
	PG          *db.Postgres
	Geo         targeting.Locator
	SlotDeps    slot.Deps
	TokenSecret []byte
	TokenTTL    time.Duration

	upgrader websocket.Upgrader
	reloadMu sync.Mutex

	slotsMu sync.RWMutex
	slots   map[string]*slot.Controller
}

// NewServer constructs a Server. pg and geo may be nil.
func NewServer(logger *zap.Logger, cfg config.Config, deps slot.Deps, placements models.PlacementStore, pg *db.Postgres, geo targeting.Locator, metrics observability.MetricsRegistry) *Server {
	if placements == nil {
		placements = models.NewInMemoryPlacementStore()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	s := &Server{
		Logger:      logger,
		Config:      cfg,
		Metrics:     metrics,
		Placements:  placements,
		PG:          pg,
		Geo:         geo,
		TokenSecret: []byte(cfg.TokenSecret),
		TokenTTL:    cfg.TokenTTL,
		slots:       make(map[string]*slot.Controller),
	}
	if deps.Logger == nil {
		deps.Logger = logger.Named("slot")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics
	}
	if deps.Resolver != nil {
		deps.Resolver = &formatFilter{next: deps.Resolver, placements: placements, logger: deps.Logger}
	}
	if len(s.TokenSecret) > 0 {
		deps.ClickHref = s.clickHref
	}
	s.SlotDeps = deps
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return s
}

// Router registers the daemon's routes. /metrics is mounted by the caller.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.HandleFunc("/slots/{placementId}/mount", s.MountHandler).Methods("GET")
	r.HandleFunc("/slots/{instanceId}/click", s.ClickHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", s.ReloadHandler).Methods("POST")
	return r
}

// originChecker allows same-host requests, requests without an Origin header
// and any origin listed in allowed. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

func (s *Server) register(c *slot.Controller) {
	s.slotsMu.Lock()
	s.slots[c.ID()] = c
	s.slotsMu.Unlock()
}

func (s *Server) unregister(id string) {
	s.slotsMu.Lock()
	delete(s.slots, id)
	s.slotsMu.Unlock()
}

// Slot returns the live instance with the given id, or nil.
func (s *Server) Slot(id string) *slot.Controller {
	s.slotsMu.RLock()
	defer s.slotsMu.RUnlock()
	return s.slots[id]
}

// ActiveSlots returns the number of mounted slot instances.
func (s *Server) ActiveSlots() int {
	s.slotsMu.RLock()
	defer s.slotsMu.RUnlock()
	return len(s.slots)
}

// UnmountAll tears down every live instance, e.g. on shutdown.
func (s *Server) UnmountAll() {
	s.slotsMu.Lock()
	live := make([]*slot.Controller, 0, len(s.slots))
	for _, c := range s.slots {
		live = append(live, c)
	}
	s.slots = make(map[string]*slot.Controller)
	s.slotsMu.Unlock()

	for _, c := range live {
		c.Unmount()
	}
}

// clickHref signs a click-through for d rendered by instance instanceID.
// An empty result makes the unit link its destination directly.
func (s *Server) clickHref(instanceID string, d *models.ContentDescriptor) string {
	tok, err := token.Generate(token.Click{
		InstanceID:  instanceID,
		ContentID:   d.ID,
		CampaignID:  d.CampaignID,
		PlacementID: d.PlacementID,
		Destination: d.DestinationURL,
	}, s.TokenSecret)
	if err != nil {
		s.Logger.Debug("click token", zap.Error(err), zap.String("content_id", d.ID))
		return ""
	}
	return s.Config.PublicURL + "/slots/" + url.PathEscape(instanceID) + "/click?t=" + url.QueryEscape(tok)
}

// Reload refreshes the placement registry from Postgres.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	n, err := db.ReloadPlacements(ctx, s.PG, s.Placements)
	if err != nil {
		return err
	}
	s.Logger.Info("placements reloaded", zap.Int("count", n))
	return nil
}
