package targeting

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/slotengine/internal/models"
)

type staticLocator map[string]string

func (s staticLocator) Location(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return s[ip.String()]
}

func TestFromRequestUsesQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/slots/srp-top/mount?fuelType=diesel&make=volvo&location=SE", nil)
	tc := FromRequest(r, staticLocator{"192.0.2.1": "DE"})
	require.NotNil(t, tc)
	assert.Equal(t, models.TargetingContext{FuelType: "diesel", Make: "volvo", Location: "SE"}, *tc)
}

func TestFromRequestDerivesLocation(t *testing.T) {
	r := httptest.NewRequest("GET", "/slots/srp-top/mount?bodyType=estate", nil)
	r.RemoteAddr = "192.0.2.1:51234"
	tc := FromRequest(r, staticLocator{"192.0.2.1": "DE-BY"})
	require.NotNil(t, tc)
	assert.Equal(t, "DE-BY", tc.Location)
	assert.Equal(t, "estate", tc.BodyType)
}

func TestFromRequestEmpty(t *testing.T) {
	r := httptest.NewRequest("GET", "/slots/srp-top/mount", nil)
	assert.Nil(t, FromRequest(r, nil))
	assert.Nil(t, FromRequest(r, staticLocator{}))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r).String())

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", ClientIP(r).String())
}

func TestDeviceFromViewport(t *testing.T) {
	cases := map[string]models.DeviceClass{
		"/?vw=375":  models.DeviceMobile,
		"/?vw=767":  models.DeviceMobile,
		"/?vw=768":  models.DeviceTablet,
		"/?vw=1023": models.DeviceTablet,
		"/?vw=1024": models.DeviceDesktop,
		"/?vw=abc":  models.DeviceUnknown,
		"/":         models.DeviceUnknown,
	}
	for target, want := range cases {
		assert.Equal(t, want, Device(httptest.NewRequest("GET", target, nil)), target)
	}
}

func TestLocale(t *testing.T) {
	r := httptest.NewRequest("GET", "/?locale=nl-NL", nil)
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	assert.Equal(t, "nl-NL", Locale(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "de-DE;q=0.9,en;q=0.8")
	assert.Equal(t, "de-DE", Locale(r))

	r.Header.Set("Accept-Language", "*")
	assert.Empty(t, Locale(r))

	r.Header.Del("Accept-Language")
	assert.Empty(t, Locale(r))
}

func TestUADeviceFamily(t *testing.T) {
	assert.Equal(t, "mobile", UADeviceFamily("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"))
	assert.Equal(t, "desktop", UADeviceFamily("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"))
	assert.Equal(t, "bot", UADeviceFamily("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.Equal(t, "other", UADeviceFamily(""))
}
