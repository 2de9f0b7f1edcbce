package subscription

import (
	"context"
	"net/url"
	"strings"

	"github.com/John-Robertt/subhub-go/internal/fetch"
)

// Converter delegates rendering to an external subscription converter that
// understands GET {BaseURL}/{target}?url=<share url>[&template=<url>].
type Converter struct {
	BaseURL string
	Options fetch.Options
}

// Enabled reports whether an external converter is configured.
func (c Converter) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

// URL builds the converter request for shareURL. The template is only
// forwarded for config targets.
func (c Converter) URL(target Target, shareURL, templateURL string) string {
	u := strings.TrimRight(c.BaseURL, "/") + "/" + string(target) + "?url=" + url.QueryEscape(shareURL)
	if templateURL != "" && target != TargetBase {
		u += "&template=" + url.QueryEscape(templateURL)
	}
	return u
}

// Relay fetches the converter output. Non-2xx replies are returned as is so
// the caller can pass them through.
func (c Converter) Relay(ctx context.Context, target Target, shareURL, templateURL string) (*fetch.Response, error) {
	return fetch.Get(ctx, fetch.KindConverter, c.URL(target, shareURL, templateURL), c.Options)
}
