// Package targeting derives the per-mount request attributes from the host
// page's mount request: targeting context, device class, locale and the
// user-agent family used for metrics.
package targeting

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/slotengine/internal/models"
)

// Locator resolves an IP to a location targeting value.
type Locator interface {
	Location(ip net.IP) string
}

// UADeviceFamily buckets a User-Agent for the mounts metric. It never feeds
// the reported device class, which comes from the viewport only.
func UADeviceFamily(uaString string) string {
	if uaString == "" {
		return "other"
	}
	u := uasurfer.Parse(uaString)
	if u.IsBot() {
		return "bot"
	}
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// ClientIP returns the caller's address, preferring the first X-Forwarded-For hop.
func ClientIP(r *http.Request) net.IP {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
	} else if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = ipStr[:idx]
	}
	return net.ParseIP(strings.TrimSpace(ipStr))
}

// FromRequest reads the targeting context from the query string. When the
// page supplies no location, loc derives one from the client IP. A nil
// result means no targeting at all.
func FromRequest(r *http.Request, loc Locator) *models.TargetingContext {
	tc := models.TargetingFromQuery(r.URL.Query())
	if tc.Location == "" && loc != nil {
		tc.Location = loc.Location(ClientIP(r))
	}
	if tc.IsZero() {
		return nil
	}
	return &tc
}

// Device classifies the viewport width passed as the vw query parameter.
// A missing or unparsable width is unknown.
func Device(r *http.Request) models.DeviceClass {
	w, err := strconv.Atoi(r.URL.Query().Get("vw"))
	if err != nil {
		return models.DeviceUnknown
	}
	return models.ClassifyViewport(w)
}

// Locale returns the locale query parameter, or the first Accept-Language tag.
func Locale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return l
	}
	al := r.Header.Get("Accept-Language")
	if al == "" {
		return ""
	}
	first := strings.Split(al, ",")[0]
	if idx := strings.Index(first, ";"); idx != -1 {
		first = first[:idx]
	}
	first = strings.TrimSpace(first)
	if first == "*" {
		return ""
	}
	return first
}
