package models

import (
	"fmt"
	"net/url"
)

// DeliveryKind names the mechanism used to present a content unit.
type DeliveryKind string

const (
	// DeliveryImageBanner is a plain image unit shown at its declared size.
	DeliveryImageBanner DeliveryKind = "IMAGE_BANNER"
	// DeliveryImageNative is an image unit styled to blend into the surrounding listing grid.
	DeliveryImageNative DeliveryKind = "IMAGE_NATIVE"
	// DeliveryEmbeddedSnippet is an opaque markup snippet authorized upstream.
	DeliveryEmbeddedSnippet DeliveryKind = "EMBEDDED_SNIPPET"
)

// IsImage reports whether the kind is rendered from an image payload.
func (k DeliveryKind) IsImage() bool {
	return k == DeliveryImageBanner || k == DeliveryImageNative
}

// ImageSource is a responsive variant of an image payload.
type ImageSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImagePayload is the presentation payload of IMAGE_* descriptors.
type ImagePayload struct {
	URL     string        `json:"url"`
	Alt     string        `json:"alt,omitempty"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Sources []ImageSource `json:"sources,omitempty"`
}

// PrimaryURL returns URL, else the first non-empty source URL, else "".
func (p *ImagePayload) PrimaryURL() string {
	if p == nil {
		return ""
	}
	if p.URL != "" {
		return p.URL
	}
	for _, s := range p.Sources {
		if s.URL != "" {
			return s.URL
		}
	}
	return ""
}

// ContentDescriptor is the unit resolved by the placement service for one
// placement request. It is treated as immutable once received.
type ContentDescriptor struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaignId"`
	// Priority is the campaign tie-break weight. Informational only here;
	// the placement service has already picked the winner.
	Priority int          `json:"priority"`
	Kind     DeliveryKind `json:"deliveryKind"`

	// Exactly one of Image and Snippet is populated, matching Kind.
	Image   *ImagePayload `json:"image,omitempty"`
	Snippet string        `json:"snippet,omitempty"`

	// DestinationURL is the outbound click-through. Empty means the unit is not clickable.
	DestinationURL string `json:"destinationUrl,omitempty"`

	PlacementID string `json:"placementId"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Clickable reports whether the descriptor carries a destination URL.
func (d *ContentDescriptor) Clickable() bool {
	return d != nil && d.DestinationURL != ""
}

// Validate checks the payload invariant: the populated payload must match the
// delivery kind and the other payload must be empty. Any violation wraps
// ErrMalformedDescriptor.
func (d *ContentDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("nil descriptor: %w", ErrMalformedDescriptor)
	}
	if d.ID == "" {
		return fmt.Errorf("missing id: %w", ErrMalformedDescriptor)
	}
	switch {
	case d.Kind == DeliveryEmbeddedSnippet:
		if d.Snippet == "" {
			return fmt.Errorf("descriptor %s: snippet kind without snippet: %w", d.ID, ErrMalformedDescriptor)
		}
		if d.Image != nil {
			return fmt.Errorf("descriptor %s: snippet kind with image payload: %w", d.ID, ErrMalformedDescriptor)
		}
	case d.Kind.IsImage():
		if d.Image.PrimaryURL() == "" {
			return fmt.Errorf("descriptor %s: image kind without image: %w", d.ID, ErrMalformedDescriptor)
		}
		if d.Snippet != "" {
			return fmt.Errorf("descriptor %s: image kind with snippet payload: %w", d.ID, ErrMalformedDescriptor)
		}
	default:
		return fmt.Errorf("descriptor %s: unknown delivery kind %q: %w", d.ID, d.Kind, ErrMalformedDescriptor)
	}
	if d.DestinationURL != "" {
		u, err := url.Parse(d.DestinationURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("descriptor %s: unsafe destination %q: %w", d.ID, d.DestinationURL, ErrMalformedDescriptor)
		}
	}
	return nil
}
