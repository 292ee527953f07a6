package useragent

import "strings"

// Device classifies the client device.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceBot     Device = "bot"
	DeviceUnknown Device = "unknown"
)

// UA is the parsed user-agent summary stored in session device info.
type UA struct {
	Browser string
	OS      string
	Device  Device
}

// Parse extracts browser, OS, and device class from a user-agent string.
// It aims for useful session listings ("Chrome on macOS"), not exhaustive
// client fingerprinting; anything unrecognized comes back empty or unknown.
func Parse(raw string) UA {
	if raw == "" {
		return UA{Device: DeviceUnknown}
	}
	lower := strings.ToLower(raw)

	return UA{
		Browser: parseBrowser(lower),
		OS:      parseOS(lower),
		Device:  parseDevice(lower),
	}
}

// Browser patterns are ordered: several browsers embed other engines'
// tokens, so the more specific match must come first.
var browserPatterns = []struct {
	token string
	name  string
}{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"opera", "Opera"},
	{"samsungbrowser", "Samsung Internet"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"crios/", "Chrome"},
	{"fxios/", "Firefox"},
	{"safari/", "Safari"},
	{"msie", "Internet Explorer"},
	{"trident/", "Internet Explorer"},
}

func parseBrowser(lower string) string {
	for _, p := range browserPatterns {
		if strings.Contains(lower, p.token) {
			return p.name
		}
	}
	return ""
}

var osPatterns = []struct {
	token string
	name  string
}{
	{"windows nt", "Windows"},
	{"windows phone", "Windows Phone"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iPadOS"},
	{"ipod", "iOS"},
	{"mac os x", "macOS"},
	{"macintosh", "macOS"},
	{"cros", "ChromeOS"},
	{"linux", "Linux"},
}

func parseOS(lower string) string {
	for _, p := range osPatterns {
		if strings.Contains(lower, p.token) {
			return p.name
		}
	}
	return ""
}

var botTokens = []string{"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests"}

func parseDevice(lower string) Device {
	for _, token := range botTokens {
		if strings.Contains(lower, token) {
			return DeviceBot
		}
	}

	switch {
	case strings.Contains(lower, "ipad"),
		strings.Contains(lower, "tablet"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return DeviceTablet
	case strings.Contains(lower, "mobile"),
		strings.Contains(lower, "iphone"),
		strings.Contains(lower, "ipod"),
		strings.Contains(lower, "windows phone"):
		return DeviceMobile
	case strings.Contains(lower, "windows"),
		strings.Contains(lower, "macintosh"),
		strings.Contains(lower, "cros"),
		strings.Contains(lower, "linux"),
		strings.Contains(lower, "x11"):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}
