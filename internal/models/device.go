package models

// DeviceClass is the coarse device bucket reported with engagement events.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
	DeviceUnknown DeviceClass = "unknown"
)

// Viewport breakpoints in CSS pixels.
const (
	TabletMinWidth  = 768
	DesktopMinWidth = 1024
)

// ClassifyViewport maps a viewport width to a device class. A width of zero or
// less means the viewport was unavailable.
func ClassifyViewport(width int) DeviceClass {
	switch {
	case width <= 0:
		return DeviceUnknown
	case width < TabletMinWidth:
		return DeviceMobile
	case width < DesktopMinWidth:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}
