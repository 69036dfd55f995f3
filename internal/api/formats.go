package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/slot"
)

// formatFilter drops content whose delivery kind the registered placement
// does not accept. Unregistered placements accept everything.
type formatFilter struct {
	next       slot.Resolver
	placements models.PlacementStore
	logger     *zap.Logger
}

func (f *formatFilter) Resolve(ctx context.Context, placementID string, tc *models.TargetingContext) *models.ContentDescriptor {
	d := f.next.Resolve(ctx, placementID, tc)
	if d == nil {
		return nil
	}
	if pl, ok := f.placements.Get(placementID); ok && !pl.Accepts(d.Kind) {
		f.logger.Debug("content format rejected by placement",
			zap.String("placement_id", placementID),
			zap.String("content_id", d.ID),
			zap.String("delivery_kind", string(d.Kind)))
		return nil
	}
	return d
}
