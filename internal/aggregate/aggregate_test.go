package aggregate

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/link"
)

type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newMapFetcher(bodies map[string]string) *mapFetcher {
	return &mapFetcher{bodies: bodies, calls: map[string]int{}}
}

func (f *mapFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, &fetch.FetchError{Status: http.StatusBadGateway, UpstreamStatus: http.StatusNotFound}
	}
	return []byte(body), nil
}

func (f *mapFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestAggregator(f Fetcher, opt Options) *Aggregator {
	a := New(f, opt)
	a.Log = quietLogger()
	return a
}

func flagged(body, label string) string {
	return body + "#" + link.PctEncode(label)
}

func TestAggregate_Dedup(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"http://a": "trojan://p@h:1#x\ntrojan://p@h:1#x\n",
	})
	got := newTestAggregator(f, Options{}).Aggregate(context.Background(), "http://a")
	want := []string{"trojan://p@h:1#x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_CycleFetchesEachURLOnce(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"http://a": "http://b",
		"http://b": "http://a\nss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#relay",
	})
	got := newTestAggregator(f, Options{}).Aggregate(context.Background(), "http://a")
	want := []string{"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#relay"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
	if f.calls["http://a"] != 1 || f.calls["http://b"] != 1 {
		t.Fatalf("calls=%v, want one fetch per url", f.calls)
	}
}

func TestAggregate_MissingChildIsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	body := ts.URL + "/missing\ntrojan://pass@host:443#Japan\n"
	mux.HandleFunc("GET /sub", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(body))))
	})

	a := newTestAggregator(HTTPFetcher{}, Options{})
	got := a.Aggregate(context.Background(), ts.URL+"/sub")
	want := []string{flagged("trojan://pass@host:443", "🇯🇵Japan")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_EmptyAndGarbage(t *testing.T) {
	a := newTestAggregator(newMapFetcher(nil), Options{})
	for _, root := range []string{"", "hello world", "%zz"} {
		if got := a.Aggregate(context.Background(), root); len(got) != 0 {
			t.Fatalf("Aggregate(%q)=%q, want empty", root, got)
		}
	}
}

func TestAggregate_UnreachableRoot(t *testing.T) {
	a := newTestAggregator(newMapFetcher(nil), Options{})
	if got := a.Aggregate(context.Background(), "http://nowhere"); len(got) != 0 {
		t.Fatalf("got=%q, want empty", got)
	}
}

func TestAggregate_RootText(t *testing.T) {
	root := link.PctEncode("see trojan://p@h:443#US and ss://x")
	got := newTestAggregator(newMapFetcher(nil), Options{}).Aggregate(context.Background(), root)
	want := []string{flagged("trojan://p@h:443", "🇺🇸US"), "ss://x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_RootTextUndecodable(t *testing.T) {
	got := newTestAggregator(newMapFetcher(nil), Options{}).Aggregate(context.Background(), "%zz trojan://p@h:443#relay")
	want := []string{"trojan://p@h:443#relay"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_NestedOrderIsDeterministic(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"http://a": "http://b\nvless://u@h:1#a\nhttp://c",
		"http://b": "trojan://b@h:1#b",
		"http://c": "trojan://c@h:1#c",
	})
	want := []string{"trojan://b@h:1#b", "vless://u@h:1#a", "trojan://c@h:1#c"}
	for i := 0; i < 20; i++ {
		got := newTestAggregator(f, Options{Concurrency: 4}).Aggregate(context.Background(), "http://a")
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: got=%q, want %q", i, got, want)
		}
	}
}

func TestAggregate_Base64BodyWithLineBreaks(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("trojan://p@h:1#HK 01\nvless://u@h:2#relay"))
	wrapped := enc[:10] + "\r\n" + enc[10:] + "\n"
	f := newMapFetcher(map[string]string{"http://a": wrapped})
	got := newTestAggregator(f, Options{}).Aggregate(context.Background(), "http://a")
	// The label is split by whitespace like any other body.
	want := []string{flagged("trojan://p@h:1", "🇭🇰HK"), "vless://u@h:2#relay"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_MaxSources(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"http://a": "http://b\nhttp://c\nhttp://d",
		"http://b": "trojan://b@h:1#b",
		"http://c": "trojan://c@h:1#c",
		"http://d": "trojan://d@h:1#d",
	})
	got := newTestAggregator(f, Options{MaxSources: 2}).Aggregate(context.Background(), "http://a")
	want := []string{"trojan://b@h:1#b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
	if n := f.total(); n != 2 {
		t.Fatalf("fetches=%d, want 2", n)
	}
}

func TestAggregate_MaxDepth(t *testing.T) {
	f := newMapFetcher(map[string]string{
		"http://a": "http://b\ntrojan://a@h:1#a",
		"http://b": "http://c\ntrojan://b@h:1#b",
		"http://c": "trojan://c@h:1#c",
	})
	got := newTestAggregator(f, Options{MaxDepth: 1}).Aggregate(context.Background(), "http://a")
	want := []string{"trojan://b@h:1#b", "trojan://a@h:1#a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
	if f.calls["http://c"] != 0 {
		t.Fatalf("http://c fetched beyond depth limit")
	}
}

func TestAggregate_CanceledContextSkipsChildren(t *testing.T) {
	f := newMapFetcher(map[string]string{"http://b": "trojan://b@h:1#b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := newTestAggregator(f, Options{}).AggregateLines(ctx, []string{"http://b", "trojan://a@h:1#a"})
	want := []string{"trojan://a@h:1#a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregateLines(t *testing.T) {
	f := newMapFetcher(map[string]string{"http://sub": "trojan://s@h:1#Singapore"})
	lines := []string{"trojan://p@h:1#Japan", "http://sub", "not a link", "trojan://p@h:1#Japan"}
	got := newTestAggregator(f, Options{}).AggregateLines(context.Background(), lines)
	want := []string{
		flagged("trojan://p@h:1", "🇯🇵Japan"),
		flagged("trojan://s@h:1", "🇸🇬Singapore"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestHTTPFetcher_ReportsUpstreamStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := HTTPFetcher{}.Fetch(context.Background(), ts.URL)
	var fe *fetch.FetchError
	if !errors.As(err, &fe) || fe.UpstreamStatus != http.StatusForbidden {
		t.Fatalf("err=%v, want upstream 403", err)
	}
}

func TestDecodeBody(t *testing.T) {
	if got := DecodeBody([]byte("dHJvamFuOi8vcEBoOjE=")); got != "trojan://p@h:1" {
		t.Fatalf("got=%q", got)
	}
	if got := DecodeBody([]byte("trojan://p@h:1")); got != "trojan://p@h:1" {
		t.Fatalf("got=%q", got)
	}

	raw := "trojan://p@h:443#Japan-\xb8\xdb\n"
	enc := base64.StdEncoding.EncodeToString([]byte(raw))
	if got := DecodeBody([]byte(enc)); got != raw {
		t.Fatalf("non-UTF-8 payload: got=%q, want %q", got, raw)
	}
	if got := DecodeBody([]byte("")); got != "" {
		t.Fatalf("empty body: got=%q", got)
	}
}

func TestAggregate_Base64BodyWithLegacyEncodedLabel(t *testing.T) {
	raw := "trojan://p@h:443#Japan-\xb8\xdb\n"
	f := newMapFetcher(map[string]string{
		"http://a": base64.StdEncoding.EncodeToString([]byte(raw)),
	})
	got := newTestAggregator(f, Options{}).Aggregate(context.Background(), "http://a")
	want := []string{flagged("trojan://p@h:443", "🇯🇵Japan-\xb8\xdb")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want %q", got, want)
	}
}

func TestAggregate_SharedNestedSourceMembership(t *testing.T) {
	bodies := map[string]string{
		"http://a":      "http://left\nhttp://right",
		"http://left":   "http://shared\ntrojan://l@h:1#l",
		"http://right":  "http://shared\ntrojan://r@h:1#r",
		"http://shared": "trojan://s@h:1#s",
	}
	want := []string{"trojan://l@h:1#l", "trojan://r@h:1#r", "trojan://s@h:1#s"}
	for i := 0; i < 20; i++ {
		f := newMapFetcher(bodies)
		got := newTestAggregator(f, Options{}).Aggregate(context.Background(), "http://a")
		sort.Strings(got)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: got=%q, want %q", i, got, want)
		}
		if f.calls["http://shared"] != 1 {
			t.Fatalf("run %d: shared fetched %d times, want 1", i, f.calls["http://shared"])
		}
	}
}
