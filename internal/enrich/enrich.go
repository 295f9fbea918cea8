// Package enrich derives export-only columns from a click's source metadata.
// None of it feeds correlation.
package enrich

import (
	"net/url"
	"strings"

	ua "github.com/mileusna/useragent"

	"github.com/sakif/clicktrail/internal/model"
)

// Device classes.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// Traffic sources.
const (
	SourceInstagram = "instagram"
	SourceSocial    = "social"
	SourceSearch    = "search"
	SourceDirect    = "direct"
	SourceReferral  = "referral"
)

// Device returns the device class for a User-Agent string. Link previews
// fetched by crawlers count as bots.
func Device(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}

	parsed := ua.Parse(userAgent)
	switch {
	case parsed.Bot:
		return DeviceBot
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Desktop:
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// Classifier buckets a click into a traffic source.
type Classifier struct {
	social []string
	search []string
}

func NewClassifier() *Classifier {
	return &Classifier{
		social: []string{
			"facebook.com",
			"fb.me",
			"twitter.com",
			"x.com",
			"t.co",
			"threads.net",
			"tiktok.com",
			"youtube.com",
			"linkedin.com",
			"reddit.com",
			"vk.com",
		},
		search: []string{
			"google.",
			"bing.com",
			"yandex.",
			"duckduckgo.com",
			"yahoo.com",
		},
	}
}

// Classify returns the traffic source. Instagram's in-app browser usually
// sends no Referer, so its User-Agent marker is checked as well.
func (c *Classifier) Classify(src model.SourceMetadata) string {
	if strings.Contains(src.UserAgent, "Instagram") {
		return SourceInstagram
	}
	if src.Referrer == "" {
		return SourceDirect
	}

	u, err := url.Parse(src.Referrer)
	if err != nil || u.Hostname() == "" {
		return SourceDirect
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if host == "instagram.com" || strings.HasSuffix(host, ".instagram.com") {
		return SourceInstagram
	}
	for _, d := range c.social {
		if host == d || strings.HasSuffix(host, "."+d) {
			return SourceSocial
		}
	}
	for _, d := range c.search {
		if strings.HasPrefix(host, d) || strings.Contains(host, "."+d) || host == d {
			return SourceSearch
		}
	}
	return SourceReferral
}
