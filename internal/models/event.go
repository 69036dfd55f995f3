package models

// EventType distinguishes exposure from interaction events.
type EventType string

const (
	// EventExposure is fired at most once per slot instance, after the dwell threshold.
	EventExposure EventType = "EXPOSURE"
	// EventInteraction is fired once per click on a clickable unit.
	EventInteraction EventType = "INTERACTION"
)

// WireName returns the event name understood by the engagement endpoint.
func (e EventType) WireName() string {
	switch e {
	case EventExposure:
		return "IMPRESSION"
	case EventInteraction:
		return "CLICK"
	default:
		return string(e)
	}
}

// EngagementEvent is a write-only measurement signal. The timestamp is
// assigned by the receiving endpoint, never by this service.
type EngagementEvent struct {
	Type        EventType
	ContentID   string
	CampaignID  string
	PlacementID string
	Device      DeviceClass
	Locale      string
}

// EngageRequest is the body posted to /content-blocks/{contentId}/engage.
type EngageRequest struct {
	EventType string `json:"eventType"`
	Device    string `json:"device"`
	Locale    string `json:"locale"`
}

// NewEngagementEvent builds an event for the given descriptor. It returns
// false when d is nil, since events are never reported for absent content.
func NewEngagementEvent(t EventType, d *ContentDescriptor, device DeviceClass, locale string) (EngagementEvent, bool) {
	if d == nil {
		return EngagementEvent{}, false
	}
	return EngagementEvent{
		Type:        t,
		ContentID:   d.ID,
		CampaignID:  d.CampaignID,
		PlacementID: d.PlacementID,
		Device:      device,
		Locale:      locale,
	}, true
}

// WireRequest converts the event to the engagement endpoint body.
func (e EngagementEvent) WireRequest() EngageRequest {
	return EngageRequest{
		EventType: e.Type.WireName(),
		Device:    string(e.Device),
		Locale:    e.Locale,
	}
}
