package models

import "testing"

func TestClassifyViewport(t *testing.T) {
	testCases := []struct {
		width int
		want  DeviceClass
	}{
		{-1, DeviceUnknown},
		{0, DeviceUnknown},
		{1, DeviceMobile},
		{375, DeviceMobile},
		{767, DeviceMobile},
		{768, DeviceTablet},
		{1023, DeviceTablet},
		{1024, DeviceDesktop},
		{2560, DeviceDesktop},
	}
	for _, tc := range testCases {
		if got := ClassifyViewport(tc.width); got != tc.want {
			t.Errorf("ClassifyViewport(%d) = %s, want %s", tc.width, got, tc.want)
		}
	}
}
