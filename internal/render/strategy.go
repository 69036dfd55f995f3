// Package render decides how a resolved content descriptor is presented.
// Everything here is pure: no I/O and no measurement concerns.
package render

import (
	"strings"

	"github.com/patrickwarner/slotengine/internal/models"
)

// Mode identifies the chosen presentation.
type Mode string

const (
	ModePlaceholder Mode = "placeholder"
	ModeSnippet     Mode = "snippet"
	ModeImage       Mode = "image"
	ModeFallback    Mode = "fallback"
	ModeNothing     Mode = "nothing"
)

// ShowsContent reports whether the mode presents a content unit, as opposed
// to a placeholder, the caller's fallback or nothing.
func (m Mode) ShowsContent() bool {
	return m == ModeSnippet || m == ModeImage
}

// Presentation is the render decision for one slot.
type Presentation struct {
	Mode   Mode   `json:"mode"`
	HTML   string `json:"html"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// ImageURL is set only for ModeImage.
	ImageURL string `json:"image_url,omitempty"`
	// Clickable is true when the markup carries a click-through.
	Clickable bool `json:"clickable"`
}

// Options carries caller-supplied inputs to Choose.
type Options struct {
	// Fallback is rendered verbatim when there is no content.
	Fallback string
	// ClickHref replaces the destination as the anchor target, e.g. a signed
	// tracking redirect. Empty means link the destination directly.
	ClickHref string
}

// Placeholder reserves the eventual slot size while the fetch is in flight.
func Placeholder(width, height int) Presentation {
	return Presentation{
		Mode:   ModePlaceholder,
		HTML:   boxHTML("slot-placeholder", width, height, ""),
		Width:  width,
		Height: height,
	}
}

// Choose picks the presentation for d. A nil or malformed descriptor renders
// the fallback, or nothing.
func Choose(d *models.ContentDescriptor, opts Options) Presentation {
	if d == nil || d.Validate() != nil {
		return empty(opts)
	}

	if d.Kind == models.DeliveryEmbeddedSnippet {
		// the snippet was authorized upstream and is emitted verbatim
		return Presentation{
			Mode:   ModeSnippet,
			HTML:   d.Snippet,
			Width:  d.Width,
			Height: d.Height,
		}
	}

	width, height := d.Width, d.Height
	if width <= 0 || height <= 0 {
		width, height = d.Image.Width, d.Image.Height
	}
	markup := composeImageHTML(d.Image, width, height)
	if markup == "" {
		return empty(opts)
	}

	p := Presentation{
		Mode:     ModeImage,
		Width:    width,
		Height:   height,
		ImageURL: d.Image.PrimaryURL(),
	}
	if d.Clickable() {
		href := opts.ClickHref
		if href == "" {
			href = d.DestinationURL
		}
		markup = wrapClickThrough(markup, href)
		p.Clickable = true
	}
	p.HTML = boxHTML("slot-unit slot-"+strings.ToLower(string(d.Kind)), width, height, markup)
	return p
}

func empty(opts Options) Presentation {
	if opts.Fallback != "" {
		return Presentation{Mode: ModeFallback, HTML: opts.Fallback}
	}
	return Presentation{Mode: ModeNothing}
}
