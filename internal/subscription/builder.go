package subscription

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/subhub-go/internal/aggregate"
	"github.com/John-Robertt/subhub-go/internal/feed"
	"github.com/John-Robertt/subhub-go/internal/link"
	"github.com/John-Robertt/subhub-go/internal/model"
)

// Output is a rendered subscription.
type Output struct {
	Target      Target
	ContentType string
	Body        []byte
	// Links is the number of proxy links that went into Body.
	Links int
}

type Builder struct {
	Aggregator         *aggregate.Aggregator
	Templates          *TemplateLoader
	DefaultTemplateURL string
	Log                logrus.FieldLogger
}

// Build renders nodes for target. Node URLs may be proxy links or nested
// subscription URLs; both are expanded. templateURL overrides the default
// base config for the config targets.
func (b *Builder) Build(ctx context.Context, target Target, nodes []model.Node, templateURL string) (Output, error) {
	urls := lo.FilterMap(nodes, func(n model.Node, _ int) (string, bool) {
		return n.URL, n.URL != ""
	})
	links := b.Aggregator.AggregateLines(ctx, urls)

	out := Output{Target: target, ContentType: target.ContentType()}
	switch target {
	case TargetBase:
		body, err := feed.EncodeAggregate(links)
		if err != nil {
			return Output{}, noValidNodes(err)
		}
		out.Body = body
		out.Links = len(links)
		return out, nil
	case TargetSingBox, TargetClash:
	default:
		return Output{}, buildError(http.StatusBadRequest, "INVALID_ARGUMENT", "不支持的订阅类型："+string(target), "build", nil)
	}

	proxies := b.parse(links)
	if len(proxies) == 0 {
		return Output{}, noValidNodes(feed.ErrNoValidNodes)
	}

	base, err := b.base(ctx, target, templateURL)
	if err != nil {
		return Output{}, err
	}

	var body []byte
	if target == TargetSingBox {
		body, err = renderSingBox(base, proxies)
	} else {
		body, err = renderClash(base, proxies)
	}
	if err != nil {
		return Output{}, err
	}
	out.Body = body
	out.Links = len(proxies)
	return out, nil
}

func (b *Builder) parse(links []string) []model.Proxy {
	proxies := make([]model.Proxy, 0, len(links))
	for _, l := range links {
		p, err := link.Parse(l)
		if err != nil {
			b.logger().WithError(err).Warn("skipping unparsable link")
			continue
		}
		proxies = append(proxies, p)
	}
	return proxies
}

func (b *Builder) base(ctx context.Context, target Target, templateURL string) ([]byte, error) {
	if templateURL == "" {
		templateURL = b.DefaultTemplateURL
	}
	if templateURL == "" || b.Templates == nil {
		if target == TargetSingBox {
			return singboxBase, nil
		}
		return clashBase, nil
	}
	tpl, err := b.Templates.Load(ctx, templateURL)
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

func noValidNodes(cause error) *BuildError {
	return buildError(http.StatusUnprocessableEntity, "NO_VALID_NODES", feed.ErrNoValidNodes.Error(), "build", cause)
}

// IsNoValidNodes reports whether err means nothing could be rendered.
func IsNoValidNodes(err error) bool {
	var be *BuildError
	return errors.As(err, &be) && be.AppError.Code == "NO_VALID_NODES"
}
