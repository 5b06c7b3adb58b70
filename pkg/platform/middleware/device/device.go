// Package device turns a User-Agent header into a short label recorded with
// each run.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Unknown is returned for an empty User-Agent.
const Unknown = "Unknown Device"

// Describe returns "<browser> on <os>", e.g. "Chrome on Mac OS X". Parts the
// header does not reveal are reported as unknown.
func Describe(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Unknown
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(os)
}
