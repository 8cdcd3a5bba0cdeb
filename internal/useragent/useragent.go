// Package useragent classifies raw User-Agent headers into the device type,
// browser and operating system recorded for every scan.
//
// Parsing is delegated to saaskit's useragent package. Its finer device
// classes collapse into desktop, mobile and tablet: bots, TVs, consoles and
// unrecognised agents are desktop. Classification never fails: empty or
// unrecognised input degrades to DeviceDesktop and Unknown.
package useragent

import (
	"strings"

	uaparser "github.com/dmitrymomot/saaskit/pkg/useragent"
)

const (
	DeviceDesktop = uaparser.DeviceTypeDesktop
	DeviceMobile  = uaparser.DeviceTypeMobile
	DeviceTablet  = uaparser.DeviceTypeTablet

	Unknown = "unknown"
)

const (
	BrowserChrome    = uaparser.BrowserChrome
	BrowserFirefox   = uaparser.BrowserFirefox
	BrowserSafari    = uaparser.BrowserSafari
	BrowserEdge      = uaparser.BrowserEdge
	BrowserOpera     = uaparser.BrowserOpera
	BrowserIE        = uaparser.BrowserIE
	BrowserYandex    = uaparser.BrowserYandex
	BrowserVivaldi   = uaparser.BrowserVivaldi
	BrowserBrave     = uaparser.BrowserBrave
	BrowserSamsung   = "samsung internet"
	BrowserUC        = "uc browser"
	BrowserFacebook  = "facebook"
	BrowserInstagram = "instagram"
)

const (
	OSWindows      = uaparser.OSWindows
	OSWindowsPhone = uaparser.OSWindowsPhone
	OSMacOS        = uaparser.OSMacOS
	OSiOS          = uaparser.OSiOS
	OSAndroid      = uaparser.OSAndroid
	OSLinux        = uaparser.OSLinux
	OSChromeOS     = uaparser.OSChromeOS
	OSHarmonyOS    = uaparser.OSHarmonyOS
	OSFireOS       = uaparser.OSFireOS
)

type Classification struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// IsDesktop reports whether the scan came from a desktop-class device.
func (c Classification) IsDesktop() bool { return c.DeviceType == DeviceDesktop }

// Classify derives device type, browser and OS from a user agent string.
func Classify(ua string) Classification {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return Classification{DeviceType: DeviceDesktop, Browser: Unknown, OS: Unknown}
	}

	// Parse reports unknown or malformed agents as errors but still returns
	// whatever it recognised, which is all a scan needs.
	parsed, _ := uaparser.Parse(ua)
	lowerUA := strings.ToLower(ua)

	return Classification{
		DeviceType: deviceType(parsed, lowerUA),
		Browser:    browser(parsed, lowerUA),
		OS:         orUnknown(parsed.OS()),
	}
}

func deviceType(parsed uaparser.UserAgent, lowerUA string) string {
	switch parsed.DeviceType() {
	case uaparser.DeviceTypeMobile:
		return DeviceMobile
	case uaparser.DeviceTypeTablet:
		if parsed.OS() == uaparser.OSWindows && !windowsTablet(lowerUA) {
			return DeviceDesktop
		}
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// Touch screen laptops also send "Touch", so Windows only counts as a
// tablet for ARM builds or an explicit Tablet PC token.
func windowsTablet(lowerUA string) bool {
	if strings.Contains(lowerUA, "tablet pc") {
		return true
	}
	return strings.Contains(lowerUA, "windows nt") && strings.Contains(lowerUA, "arm")
}

func orUnknown(v string) string {
	if v == "" {
		return Unknown
	}
	return v
}
