package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/token"
)

// redirectNavigator opens a destination by redirecting the click request.
type redirectNavigator struct {
	w http.ResponseWriter
	r *http.Request
}

func (n redirectNavigator) Open(url string) {
	http.Redirect(n.w, n.r, url, http.StatusFound)
}

// ClickHandler handles GET /slots/{instanceId}/click. The signed token names
// the instance and destination. A live instance reports the interaction;
// otherwise the redirect still happens and nothing is reported.
func (s *Server) ClickHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ClickHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/slots/{instanceId}/click"),
		))
	defer span.End()
	r = r.WithContext(ctx)

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/slots/click"
	const method = "GET"

	instanceID := mux.Vars(r)["instanceId"]
	tok := r.URL.Query().Get("t")
	if tok == "" {
		logger.Warn("missing token")
		s.Metrics.IncrementRequests(endpoint, method, "401")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}
	click, err := token.Verify(tok, s.TokenSecret, s.TokenTTL)
	if err == nil && click.InstanceID != instanceID {
		err = token.ErrInvalid
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid token")
		logger.Warn("token verify", zap.Error(err), zap.Bool("expired", errors.Is(err, token.ErrExpired)))
		s.Metrics.IncrementRequests(endpoint, method, "401")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	span.SetAttributes(
		attribute.String("slot_id", click.InstanceID),
		attribute.String("content_id", click.ContentID),
		attribute.String("campaign_id", click.CampaignID),
		attribute.String("placement_id", click.PlacementID),
	)

	reported := false
	if ctrl := s.Slot(instanceID); ctrl != nil {
		if d := ctrl.Content(); d != nil && d.ID == click.ContentID {
			reported = ctrl.Click(redirectNavigator{w: w, r: r})
		}
	}
	if !reported {
		logger.Debug("click without live slot", zap.String("slot_id", instanceID))
		http.Redirect(w, r, click.Destination, http.StatusFound)
	}
	span.SetAttributes(attribute.Bool("reported", reported))

	s.Metrics.IncrementRequests(endpoint, method, "302")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
