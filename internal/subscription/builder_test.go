package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/subhub-go/internal/aggregate"
	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/model"
)

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := f[rawURL]
	if !ok {
		return nil, &fetch.FetchError{Status: http.StatusBadGateway, UpstreamStatus: http.StatusNotFound}
	}
	return []byte(body), nil
}

var (
	vmessUS = "vmess://" + base64.StdEncoding.EncodeToString([]byte(
		`{"v":"2","ps":"US 01","add":"us.example.com","port":"443","id":"uuid-us","aid":"0","net":"ws","path":"/ws","host":"cdn.example.com","tls":"tls"}`))
	ssRelay   = "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#relay"
	trojanJP  = "trojan://pw@jp.example.com:443?sni=jp.example.com#Japan"
	testNodes = []model.Node{
		{ID: "1", Name: "us", URL: vmessUS},
		{ID: "2", Name: "relay", URL: ssRelay},
		{ID: "3", Name: "nested", URL: "http://sub.example.com/a"},
	}
)

func newTestBuilder(fetcher aggregate.Fetcher) *Builder {
	log := logrus.New()
	log.SetOutput(io.Discard)
	agg := aggregate.New(fetcher, aggregate.Options{})
	agg.Log = log
	return &Builder{Aggregator: agg, Templates: NewTemplateLoader(fetch.Options{}), Log: log}
}

func defaultFetcher() staticFetcher {
	return staticFetcher{"http://sub.example.com/a": trojanJP}
}

func TestBuild_Base(t *testing.T) {
	out, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetBase, testNodes, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(out.Body))
	if err != nil {
		t.Fatalf("body is not base64: %v", err)
	}
	lines := strings.Split(string(raw), "\n")
	if len(lines) != 3 || out.Links != 3 {
		t.Fatalf("lines=%q links=%d, want 3", lines, out.Links)
	}
	if lines[1] != ssRelay {
		t.Fatalf("line[1]=%q, want unchanged ss link", lines[1])
	}
	if !strings.HasSuffix(lines[2], "#%F0%9F%87%AF%F0%9F%87%B5Japan") {
		t.Fatalf("line[2]=%q, want relabeled nested link", lines[2])
	}
	if out.ContentType != "text/plain;charset=utf-8" {
		t.Fatalf("contentType=%q", out.ContentType)
	}
}

func TestBuild_NoValidNodes(t *testing.T) {
	nodes := []model.Node{{ID: "1", URL: "not a link"}, {ID: "2", URL: "http://sub.example.com/missing"}}
	for _, target := range Targets {
		_, err := newTestBuilder(defaultFetcher()).Build(context.Background(), target, nodes, "")
		if !IsNoValidNodes(err) {
			t.Fatalf("%s: err=%v, want NO_VALID_NODES", target, err)
		}
	}
}

type singboxDoc struct {
	DNS       map[string]any   `json:"dns"`
	Inbounds  []map[string]any `json:"inbounds"`
	Outbounds []map[string]any `json:"outbounds"`
	Route     map[string]any   `json:"route"`
}

func outboundTags(obs []map[string]any) []string {
	tags := make([]string, len(obs))
	for i, o := range obs {
		tags[i], _ = o["tag"].(string)
	}
	return tags
}

func TestBuild_SingBoxBuiltIn(t *testing.T) {
	out, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetSingBox, testNodes, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var doc singboxDoc
	if err := json.Unmarshal(out.Body, &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.Body)
	}
	if doc.DNS["final"] != "dns_direct" || len(doc.Inbounds) != 2 {
		t.Fatalf("base config not carried: dns=%v inbounds=%v", doc.DNS, doc.Inbounds)
	}

	wantTags := []string{"proxy", "auto", "🇺🇸US 01", "relay", "🇯🇵Japan", "direct", "block"}
	if got := outboundTags(doc.Outbounds); !reflect.DeepEqual(got, wantTags) {
		t.Fatalf("tags=%q, want %q", got, wantTags)
	}

	vm := doc.Outbounds[2]
	if vm["type"] != "vmess" || vm["server"] != "us.example.com" || vm["uuid"] != "uuid-us" {
		t.Fatalf("vmess outbound=%v", vm)
	}
	transport, _ := vm["transport"].(map[string]any)
	if transport["type"] != "ws" || transport["path"] != "/ws" {
		t.Fatalf("vmess transport=%v", transport)
	}
	ss := doc.Outbounds[3]
	if ss["type"] != "shadowsocks" || ss["method"] != "aes-128-gcm" || ss["password"] != "pass" {
		t.Fatalf("ss outbound=%v", ss)
	}
	tj := doc.Outbounds[4]
	tls, _ := tj["tls"].(map[string]any)
	if tls["enabled"] != true || tls["server_name"] != "jp.example.com" {
		t.Fatalf("trojan tls=%v", tls)
	}
	if doc.Route["final"] != "proxy" {
		t.Fatalf("route=%v", doc.Route)
	}
}

func TestBuild_SingBoxTemplate(t *testing.T) {
	tpl := `{
  // user template
  "log": {"level": "warn"},
  "outbounds": [
    {"type": "direct", "tag": "direct"},
    {"type": "dns", "tag": "dns-out"}
  ],
  "route": {"final": "direct"}
}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tpl))
	}))
	defer ts.Close()

	out, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetSingBox, testNodes[:1], ts.URL)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var doc singboxDoc
	if err := json.Unmarshal(out.Body, &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	wantTags := []string{"proxy", "auto", "🇺🇸US 01", "direct", "block", "dns-out"}
	if got := outboundTags(doc.Outbounds); !reflect.DeepEqual(got, wantTags) {
		t.Fatalf("tags=%q, want %q", got, wantTags)
	}
	if doc.Route["final"] != "direct" {
		t.Fatalf("template route overwritten: %v", doc.Route)
	}
	if doc.DNS != nil {
		t.Fatalf("built-in dns leaked into template output")
	}
}

func TestBuild_SingBoxTemplateInvalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[1,2,3]"))
	}))
	defer ts.Close()

	_, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetSingBox, testNodes[:1], ts.URL)
	be, ok := err.(*BuildError)
	if !ok || be.AppError.Code != "TEMPLATE_INVALID" || be.Status != http.StatusUnprocessableEntity {
		t.Fatalf("err=%v, want TEMPLATE_INVALID", err)
	}
}

func TestBuild_TemplateFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetClash, testNodes[:1], ts.URL)
	fe, ok := err.(*fetch.FetchError)
	if !ok || fe.AppError.Stage != "fetch_template" {
		t.Fatalf("err=%T %v, want template FetchError", err, err)
	}
}

type clashDoc struct {
	Port        int              `yaml:"port"`
	Proxies     []map[string]any `yaml:"proxies"`
	ProxyGroups []map[string]any `yaml:"proxy-groups"`
	Rules       []string         `yaml:"rules"`
}

func TestBuild_ClashBuiltIn(t *testing.T) {
	out, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetClash, testNodes, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(string(out.Body), "port: 7890\n") {
		t.Fatalf("base key order lost:\n%s", out.Body)
	}
	var doc clashDoc
	if err := yaml.Unmarshal(out.Body, &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(doc.Proxies) != 3 {
		t.Fatalf("proxies=%d, want 3", len(doc.Proxies))
	}
	vm := doc.Proxies[0]
	if vm["name"] != "🇺🇸US 01" || vm["type"] != "vmess" || vm["alterId"] != 0 || vm["network"] != "ws" {
		t.Fatalf("vmess proxy=%v", vm)
	}
	if doc.Proxies[1]["cipher"] != "aes-128-gcm" {
		t.Fatalf("ss proxy=%v", doc.Proxies[1])
	}
	if len(doc.ProxyGroups) != 2 || doc.ProxyGroups[0]["name"] != "PROXY" || doc.ProxyGroups[1]["type"] != "url-test" {
		t.Fatalf("groups=%v", doc.ProxyGroups)
	}
	if !reflect.DeepEqual(doc.Rules, []string{"MATCH,PROXY"}) {
		t.Fatalf("rules=%q", doc.Rules)
	}
}

func TestBuild_ClashTemplateKeepsRulesAndGroups(t *testing.T) {
	tpl := `mixed-port: 7890
proxy-groups:
  - name: PROXY
    type: select
    proxies: [DIRECT]
  - name: Streaming
    type: select
    proxies: [PROXY, DIRECT]
rules:
  - GEOIP,CN,DIRECT
  - MATCH,Streaming
`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tpl))
	}))
	defer ts.Close()

	out, err := newTestBuilder(defaultFetcher()).Build(context.Background(), TargetClash, testNodes[:2], ts.URL)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var doc clashDoc
	if err := yaml.Unmarshal(out.Body, &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	var names []string
	for _, g := range doc.ProxyGroups {
		names = append(names, g["name"].(string))
	}
	if !reflect.DeepEqual(names, []string{"PROXY", "AUTO", "Streaming"}) {
		t.Fatalf("groups=%q", names)
	}
	if !reflect.DeepEqual(doc.Rules, []string{"GEOIP,CN,DIRECT", "MATCH,Streaming"}) {
		t.Fatalf("rules=%q", doc.Rules)
	}
}

func TestUniqueNames(t *testing.T) {
	proxies := []model.Proxy{
		{Name: "HK"}, {Name: "HK"}, {Name: "HK 2"}, {Name: "", Server: "1.2.3.4", Port: 443}, {Name: "auto"},
	}
	uniqueNames(proxies, "auto")
	got := proxyNames(proxies)
	want := []string{"HK", "HK 2", "HK 2 2", "1.2.3.4:443", "auto 2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("names=%q, want %q", got, want)
	}
}

func TestParseTarget(t *testing.T) {
	for _, s := range []string{"base", "singbox", "clash"} {
		if _, ok := ParseTarget(s); !ok {
			t.Fatalf("ParseTarget(%q) not ok", s)
		}
	}
	if _, ok := ParseTarget("surge"); ok {
		t.Fatalf("ParseTarget(surge) ok")
	}
}
