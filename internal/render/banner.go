package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/patrickwarner/slotengine/internal/models"
)

// composeImageHTML converts an image payload into markup sized to the
// declared dimensions. An empty string means there is nothing to show.
func composeImageHTML(img *models.ImagePayload, width, height int) string {
	if img == nil {
		return ""
	}

	var imgParts []string

	src := img.PrimaryURL()
	if src == "" {
		return ""
	}
	imgParts = append(imgParts, fmt.Sprintf(`src="%s"`, html.EscapeString(src)))

	altText := img.Alt
	if altText == "" {
		altText = "Sponsored"
	}
	imgParts = append(imgParts, fmt.Sprintf(`alt="%s"`, html.EscapeString(altText)))

	if width > 0 && height > 0 {
		imgParts = append(imgParts, fmt.Sprintf(`width="%d" height="%d"`, width, height))
	}

	if len(img.Sources) > 0 {
		var srcset []string
		for _, src := range img.Sources {
			if src.URL != "" && src.Width > 0 {
				srcset = append(srcset, fmt.Sprintf("%s %dw", html.EscapeString(src.URL), src.Width))
			}
		}
		if len(srcset) > 0 {
			imgParts = append(imgParts, fmt.Sprintf(`srcset="%s"`, strings.Join(srcset, ", ")))
		}
	}

	imgParts = append(imgParts, `style="max-width:100%;height:auto;display:block;"`)
	return fmt.Sprintf("<img %s>", strings.Join(imgParts, " "))
}

// wrapClickThrough opens href in a new browsing context.
func wrapClickThrough(inner, href string) string {
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, html.EscapeString(href), inner)
}

// boxHTML reserves width x height so surrounding layout does not move.
func boxHTML(class string, width, height int, inner string) string {
	style := "overflow:hidden;"
	if width > 0 && height > 0 {
		style = fmt.Sprintf("width:%dpx;height:%dpx;overflow:hidden;", width, height)
	}
	return fmt.Sprintf(`<div class="%s" style="%s">%s</div>`, class, style, inner)
}
