package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/lo"

	"github.com/John-Robertt/subhub-go/internal/feed"
	"github.com/John-Robertt/subhub-go/internal/model"
	"github.com/John-Robertt/subhub-go/internal/store"
	"github.com/John-Robertt/subhub-go/internal/subscription"
)

// collectionNodes resolves a collection and its member nodes. Both a missing
// collection and an empty member list are reported as 404.
func (s *server) collectionNodes(ctx context.Context, id string) (model.Collection, []model.Node, error) {
	c, err := s.opt.Store.GetCollection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Collection{}, nil, notFoundError("集合不存在")
	}
	if err != nil {
		return model.Collection{}, nil, err
	}
	nodes, err := s.opt.Store.CollectionNodes(ctx, c)
	if err != nil {
		return model.Collection{}, nil, err
	}
	if len(nodes) == 0 {
		return model.Collection{}, nil, notFoundError("集合中没有节点")
	}
	return c, nodes, nil
}

// handleShare returns the member node URLs joined by newlines, unencoded.
func (s *server) handleShare(w http.ResponseWriter, r *http.Request) {
	_, nodes, err := s.collectionNodes(r.Context(), r.PathValue("id"))
	if err != nil {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		writeErrorFromErr(w, err)
		return
	}
	urls := lo.Map(nodes, func(n model.Node, _ int) string { return n.URL })

	feed.SetShareHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed.EncodeShare(urls))
}

// handleShareKind renders the collection for one client. With an external
// converter configured the request is relayed there unless internal=1.
func (s *server) handleShareKind(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	kind := r.PathValue("kind")
	target, ok := subscription.ParseTarget(kind)
	if !ok {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "不支持的订阅类型（仅支持 base/singbox/clash）", kind))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	id := r.PathValue("id")
	c, nodes, err := s.collectionNodes(ctx, id)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	q := r.URL.Query()
	templateURL := q.Get("template")

	if s.opt.Converter.Enabled() && q.Get("internal") != "1" {
		s.relay(ctx, w, r, c, target, templateURL)
		return
	}

	out, err := s.opt.Builder.Build(ctx, target, nodes, templateURL)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	metricsAddLinks(string(target), out.Links)
	if target == subscription.TargetBase {
		feed.SetAggregateHeaders(w.Header())
	} else {
		w.Header().Set("Content-Type", out.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Profile-Update-Interval", feed.ProfileUpdateInterval)
	}
	setAttachmentHeaders(w, c.Name, target)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (s *server) relay(ctx context.Context, w http.ResponseWriter, r *http.Request, c model.Collection, target subscription.Target, templateURL string) {
	resp, err := s.opt.Converter.Relay(ctx, target, s.shareURL(r, c.ID), templateURL)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	ct := resp.ContentType
	if ct == "" {
		ct = target.ContentType()
	}
	w.Header().Set("Content-Type", ct)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		setAttachmentHeaders(w, c.Name, target)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
