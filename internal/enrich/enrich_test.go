package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/clicktrail/internal/model"
)

func TestDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"empty", "", DeviceUnknown},
		{"iphone instagram", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 320.0.0.0", DeviceMobile},
		{"android chrome", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36", DeviceMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1", DeviceTablet},
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", DeviceDesktop},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", DeviceBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Device(tt.ua))
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		src  model.SourceMetadata
		want string
	}{
		{"no referrer", model.SourceMetadata{}, SourceDirect},
		{"instagram in-app browser", model.SourceMetadata{UserAgent: "Mozilla/5.0 (iPhone) Instagram 320.0"}, SourceInstagram},
		{"instagram link shim", model.SourceMetadata{Referrer: "https://l.instagram.com/?u=https%3A%2F%2Ftrack.example.com%2Fig"}, SourceInstagram},
		{"instagram www", model.SourceMetadata{Referrer: "https://www.instagram.com/acme/"}, SourceInstagram},
		{"facebook mobile", model.SourceMetadata{Referrer: "https://m.facebook.com/"}, SourceSocial},
		{"x", model.SourceMetadata{Referrer: "https://x.com/acme"}, SourceSocial},
		{"lookalike is not social", model.SourceMetadata{Referrer: "https://notx.com/"}, SourceReferral},
		{"google", model.SourceMetadata{Referrer: "https://www.google.com/search?q=acme"}, SourceSearch},
		{"yandex ru", model.SourceMetadata{Referrer: "https://yandex.ru/search/"}, SourceSearch},
		{"blog", model.SourceMetadata{Referrer: "https://blog.example.org/post"}, SourceReferral},
		{"garbage", model.SourceMetadata{Referrer: "::not a url"}, SourceDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.src))
		})
	}
}
