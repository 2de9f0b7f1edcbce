package httpapi

import (
	"context"
	"net/http"

	"github.com/John-Robertt/subhub-go/internal/feed"
)

// handleRoot serves the aggregator for GET /?url=... and the usage page
// otherwise.
func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("url")
	if root == "" {
		handleHome(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	links := s.opt.Aggregator.Aggregate(ctx, root)
	body, err := feed.EncodeAggregate(links)
	if err != nil {
		writeAggregateError(w, http.StatusInternalServerError, "NO_VALID_NODES", err.Error())
		return
	}

	metricsAddLinks("aggregate", len(links))
	feed.SetAggregateHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
