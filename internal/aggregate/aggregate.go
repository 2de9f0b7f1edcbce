// Package aggregate expands subscription sources into a flat, deduplicated
// list of relabeled proxy links.
package aggregate

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/link"
)

// Fetcher retrieves the body of a subscription source.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches sources over HTTP with the fetch package policy.
type HTTPFetcher struct {
	Options fetch.Options
}

func (f HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return fetch.FetchBytes(ctx, fetch.KindSubscription, rawURL, f.Options)
}

type Options struct {
	// MaxDepth bounds nested subscription levels below the root. 0 = unlimited.
	MaxDepth int
	// MaxSources bounds the number of URLs fetched per call. 0 = unlimited.
	MaxSources int
	// Concurrency bounds in-flight child fetches per source. 0 = unlimited.
	Concurrency int
}

type Aggregator struct {
	Fetcher Fetcher
	Options Options
	Log     logrus.FieldLogger
}

func New(f Fetcher, opt Options) *Aggregator {
	return &Aggregator{Fetcher: f, Options: opt, Log: logrus.StandardLogger()}
}

var linkPattern = regexp.MustCompile(`(?i)(vmess|vless|trojan|ss|hysteria2)://\S+`)

// Aggregate expands root into relabeled links. A root starting with "http"
// is fetched; anything else is treated as percent-encoded text and scanned
// for links. The result is empty when nothing usable was found; per-source
// failures are logged and skipped.
func (a *Aggregator) Aggregate(ctx context.Context, root string) []string {
	st := NewState()
	if strings.HasPrefix(root, "http") {
		if !st.claim(root, a.Options.MaxSources) {
			return nil
		}
		st.merge(a.source(ctx, st, root, 0))
		return st.Links()
	}

	text, err := url.PathUnescape(root)
	if err != nil {
		text = root
	}
	matches := linkPattern.FindAllString(text, -1)
	for _, m := range matches {
		st.add(link.ParseAndRelabel(m))
	}
	return st.Links()
}

// AggregateLines treats lines as the content of a single virtual source:
// proxy links are relabeled and http lines are fetched recursively.
func (a *Aggregator) AggregateLines(ctx context.Context, lines []string) []string {
	st := NewState()
	st.merge(a.scan(ctx, st, lines, 0))
	return st.Links()
}

// source fetches one URL and scans its body. depth is the nesting level of
// rawURL; the root is 0.
func (a *Aggregator) source(ctx context.Context, st *State, rawURL string, depth int) []string {
	log := a.logger().WithField("url", rawURL)
	body, err := a.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var fe *fetch.FetchError
		switch {
		case errors.As(err, &fe) && fe.NotFound():
			log.Warn("subscription source not found")
		case errors.As(err, &fe) && fe.UpstreamStatus != 0:
			log.WithField("status", fe.UpstreamStatus).Error("subscription source returned an error status")
		default:
			log.WithError(err).Warn("subscription source fetch failed")
		}
		return nil
	}
	return a.scan(ctx, st, SplitLines(DecodeBody(body)), depth)
}

func (a *Aggregator) scan(ctx context.Context, st *State, lines []string, depth int) []string {
	slots := make([][]string, len(lines))
	var g errgroup.Group
	if a.Options.Concurrency > 0 {
		g.SetLimit(a.Options.Concurrency)
	}
	for i, line := range lines {
		switch {
		case link.IsProxyLink(line):
			slots[i] = []string{link.ParseAndRelabel(line)}
		case strings.HasPrefix(line, "http"):
			if a.Options.MaxDepth > 0 && depth+1 > a.Options.MaxDepth {
				a.logger().WithField("url", line).Warn("nested subscription skipped: depth limit reached")
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			if !st.claim(line, a.Options.MaxSources) {
				continue
			}
			g.Go(func() error {
				slots[i] = a.source(ctx, st, line, depth+1)
				return nil
			})
		}
	}
	_ = g.Wait()

	var out []string
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

func (a *Aggregator) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// DecodeBody returns the base64-decoded body when the whole body (ignoring
// whitespace) decodes without error, otherwise the raw body. The decoded
// bytes are not inspected; labels in legacy encodings are kept as they are.
func DecodeBody(body []byte) string {
	if decoded, err := link.DecodeBase64(string(body)); err == nil {
		return string(decoded)
	}
	return string(body)
}

// SplitLines splits text on runs of whitespace.
func SplitLines(text string) []string {
	return strings.Fields(text)
}
