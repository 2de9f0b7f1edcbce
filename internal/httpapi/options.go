package httpapi

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/subhub-go/internal/aggregate"
	"github.com/John-Robertt/subhub-go/internal/auth"
	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/store"
	"github.com/John-Robertt/subhub-go/internal/subscription"
)

// Options wires the HTTP API to its collaborators. Zero fields get
// in-memory or default implementations, which is what most tests rely on.
type Options struct {
	// ConvertTimeout is the hard upper bound for one aggregation or build
	// request (all fetches included).
	ConvertTimeout time.Duration

	// FetchTimeout is the per-HTTP-request timeout used when fetching remote
	// resources (subscriptions, templates, the external converter).
	FetchTimeout time.Duration

	Admin auth.Admin

	Store      *store.Store
	Auth       *auth.Service
	Throttle   *auth.Throttle
	Aggregator *aggregate.Aggregator
	Builder    *subscription.Builder
	Converter  subscription.Converter

	// PublicURL is the origin handed to the external converter in share
	// URLs. Empty derives it from the request.
	PublicURL string

	// Shown on the management page.
	SubscriberURL string
	QuickSubURL   string

	Log logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if o.Admin.Username == "" && o.Admin.Password == "" {
		o.Admin = auth.Admin{Username: auth.DefaultAdminUsername, Password: auth.DefaultAdminPassword}
	}
	if o.Store == nil {
		o.Store = store.New(store.NewMemoryKV())
	}
	if o.Auth == nil {
		o.Auth = auth.NewService(o.Store, auth.DefaultSessionTTL)
	}
	if o.Throttle == nil {
		o.Throttle = auth.NewThrottle(12*time.Second, 5, 10*time.Minute)
	}
	fopt := fetch.Options{Timeout: o.FetchTimeout}
	if o.Aggregator == nil {
		o.Aggregator = aggregate.New(aggregate.HTTPFetcher{Options: fopt}, aggregate.Options{
			MaxDepth:    16,
			MaxSources:  256,
			Concurrency: 8,
		})
		o.Aggregator.Log = o.Log
	}
	if o.Builder == nil {
		o.Builder = &subscription.Builder{
			Aggregator: o.Aggregator,
			Templates:  subscription.NewTemplateLoader(fopt),
			Log:        o.Log,
		}
	}
	if o.Converter.Options.Timeout <= 0 {
		o.Converter.Options.Timeout = o.FetchTimeout
	}
	return o
}
