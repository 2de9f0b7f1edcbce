package subscription

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/John-Robertt/subhub-go/internal/model"
)

//go:embed assets/singbox_base.jsonc
var singboxBase []byte

const (
	tagProxy  = "proxy"
	tagAuto   = "auto"
	tagDirect = "direct"
	tagBlock  = "block"

	urlTestURL = "https://www.gstatic.com/generate_204"
)

type sbTLS struct {
	Enabled    bool       `json:"enabled"`
	ServerName string     `json:"server_name,omitempty"`
	Insecure   bool       `json:"insecure,omitempty"`
	ALPN       []string   `json:"alpn,omitempty"`
	UTLS       *sbUTLS    `json:"utls,omitempty"`
	Reality    *sbReality `json:"reality,omitempty"`
}

type sbUTLS struct {
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint"`
}

type sbReality struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"public_key"`
	ShortID   string `json:"short_id,omitempty"`
}

type sbTransport struct {
	Type        string            `json:"type"`
	Path        string            `json:"path,omitempty"`
	Host        []string          `json:"host,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
}

type sbObfs struct {
	Type     string `json:"type"`
	Password string `json:"password,omitempty"`
}

type sbOutbound struct {
	Type       string       `json:"type"`
	Tag        string       `json:"tag"`
	Server     string       `json:"server,omitempty"`
	ServerPort int          `json:"server_port,omitempty"`
	UUID       string       `json:"uuid,omitempty"`
	Security   string       `json:"security,omitempty"`
	AlterID    int          `json:"alter_id,omitempty"`
	Flow       string       `json:"flow,omitempty"`
	Method     string       `json:"method,omitempty"`
	Password   string       `json:"password,omitempty"`
	Plugin     string       `json:"plugin,omitempty"`
	PluginOpts string       `json:"plugin_opts,omitempty"`
	Obfs       *sbObfs      `json:"obfs,omitempty"`
	TLS        *sbTLS       `json:"tls,omitempty"`
	Transport  *sbTransport `json:"transport,omitempty"`

	Outbounds []string `json:"outbounds,omitempty"`
	Default   string   `json:"default,omitempty"`
	URL       string   `json:"url,omitempty"`
	Interval  string   `json:"interval,omitempty"`
}

func singboxOutbound(p model.Proxy) sbOutbound {
	o := sbOutbound{
		Type:       p.Type,
		Tag:        p.Name,
		Server:     p.Server,
		ServerPort: p.Port,
	}
	switch p.Type {
	case "vmess":
		o.UUID = p.UUID
		o.Security = p.Security
		o.AlterID = p.AlterID
	case "vless":
		o.UUID = p.UUID
		o.Flow = p.Flow
	case "trojan":
		o.Password = p.Password
	case "ss":
		o.Type = "shadowsocks"
		o.Method = p.Cipher
		o.Password = p.Password
		if p.PluginName != "" {
			o.Plugin = singboxPluginName(p.PluginName)
			opts := make([]string, 0, len(p.PluginOpts))
			for _, kv := range p.PluginOpts {
				opts = append(opts, kv.Key+"="+kv.Value)
			}
			o.PluginOpts = strings.Join(opts, ";")
		}
	case "hysteria2":
		o.Password = p.Password
		if p.Obfs != "" {
			o.Obfs = &sbObfs{Type: p.Obfs, Password: p.ObfsPassword}
		}
	}
	if p.TLS {
		t := &sbTLS{Enabled: true, ServerName: p.SNI, Insecure: p.Insecure, ALPN: p.ALPN}
		if p.Fingerprint != "" {
			t.UTLS = &sbUTLS{Enabled: true, Fingerprint: p.Fingerprint}
		}
		if p.PublicKey != "" {
			t.Reality = &sbReality{Enabled: true, PublicKey: p.PublicKey, ShortID: p.ShortID}
			if t.UTLS == nil {
				t.UTLS = &sbUTLS{Enabled: true, Fingerprint: "chrome"}
			}
		}
		o.TLS = t
	}
	o.Transport = singboxTransport(p)
	return o
}

func singboxPluginName(name string) string {
	if name == "simple-obfs" {
		return "obfs-local"
	}
	return name
}

func singboxTransport(p model.Proxy) *sbTransport {
	switch p.Network {
	case "ws":
		t := &sbTransport{Type: "ws", Path: p.Path}
		if p.Host != "" {
			t.Headers = map[string]string{"Host": p.Host}
		}
		return t
	case "grpc":
		return &sbTransport{Type: "grpc", ServiceName: p.Path}
	case "h2", "http":
		t := &sbTransport{Type: "http", Path: p.Path}
		if p.Host != "" {
			t.Host = splitList(p.Host)
		}
		return t
	case "httpupgrade":
		t := &sbTransport{Type: "httpupgrade", Path: p.Path}
		if p.Host != "" {
			t.Headers = map[string]string{"Host": p.Host}
		}
		return t
	default:
		return nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// renderSingBox merges the generated outbounds into base, a JSONC object.
// Generated tags win over template outbounds with the same tag.
func renderSingBox(base []byte, proxies []model.Proxy) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(base), &doc); err != nil || doc == nil {
		return nil, buildError(http.StatusUnprocessableEntity, "TEMPLATE_INVALID", "sing-box 模板不是合法的 JSON 对象", "render_singbox", err)
	}

	uniqueNames(proxies, tagProxy, tagAuto, tagDirect, tagBlock)
	names := proxyNames(proxies)

	selectable := make([]string, 0, len(names)+2)
	selectable = append(selectable, tagAuto)
	selectable = append(selectable, names...)
	selectable = append(selectable, tagDirect)

	generated := make([]any, 0, len(proxies)+4)
	generated = append(generated,
		sbOutbound{Type: "selector", Tag: tagProxy, Outbounds: selectable, Default: tagAuto},
		sbOutbound{Type: "urltest", Tag: tagAuto, Outbounds: names, URL: urlTestURL, Interval: "3m"},
	)
	for _, p := range proxies {
		generated = append(generated, singboxOutbound(p))
	}
	generated = append(generated,
		sbOutbound{Type: "direct", Tag: tagDirect},
		sbOutbound{Type: "block", Tag: tagBlock},
	)

	taken := make(map[string]bool, len(generated))
	for _, o := range generated {
		taken[o.(sbOutbound).Tag] = true
	}
	if existing, ok := doc["outbounds"].([]any); ok {
		for _, o := range existing {
			m, ok := o.(map[string]any)
			if !ok {
				continue
			}
			if tag, _ := m["tag"].(string); tag != "" && taken[tag] {
				continue
			}
			generated = append(generated, m)
		}
	}
	doc["outbounds"] = generated

	if _, ok := doc["route"]; !ok {
		doc["route"] = map[string]any{
			"auto_detect_interface": true,
			"final":                 tagProxy,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "sing-box 配置序列化失败", "render_singbox", err)
	}
	return buf.Bytes(), nil
}
