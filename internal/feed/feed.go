// Package feed turns link lists into subscription response bodies.
package feed

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrNoValidNodes is returned when an aggregation produced nothing to serve.
var ErrNoValidNodes = errors.New("No valid nodes found")

// ProfileUpdateInterval is advertised to clients, in hours.
const ProfileUpdateInterval = "6"

// EncodeAggregate joins links with '\n' and base64-encodes the result.
func EncodeAggregate(links []string) ([]byte, error) {
	if len(links) == 0 {
		return nil, ErrNoValidNodes
	}
	joined := strings.Join(links, "\n")
	out := make([]byte, base64.StdEncoding.EncodedLen(len(joined)))
	base64.StdEncoding.Encode(out, []byte(joined))
	return out, nil
}

// EncodeShare joins urls with '\n' without further encoding.
func EncodeShare(urls []string) []byte {
	return []byte(strings.Join(urls, "\n"))
}

// SetAggregateHeaders sets the headers every aggregation response carries.
func SetAggregateHeaders(h http.Header) {
	h.Set("Content-Type", "text/plain;charset=utf-8")
	h.Set("Profile-Update-Interval", ProfileUpdateInterval)
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", "no-cache")
}

// SetShareHeaders sets the headers of the raw share response.
func SetShareHeaders(h http.Header) {
	h.Set("Content-Type", "text/plain;charset=utf-8")
	h.Set("Access-Control-Allow-Origin", "*")
}
