package subscription

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/subhub-go/internal/fetch"
)

// TemplateLoader fetches base configs. Concurrent loads of the same URL
// share one upstream request.
type TemplateLoader struct {
	Options fetch.Options

	group singleflight.Group
	fetch func(ctx context.Context, rawURL string, opt fetch.Options) (string, error)
}

func NewTemplateLoader(opt fetch.Options) *TemplateLoader {
	return &TemplateLoader{Options: opt}
}

func (l *TemplateLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	v, err, _ := l.group.Do(rawURL, func() (any, error) {
		f := l.fetch
		if f == nil {
			f = func(ctx context.Context, rawURL string, opt fetch.Options) (string, error) {
				return fetch.FetchTextWithOptions(ctx, fetch.KindTemplate, rawURL, opt)
			}
		}
		return f(ctx, rawURL, l.Options)
	})
	if err != nil {
		return nil, err
	}
	return []byte(v.(string)), nil
}
