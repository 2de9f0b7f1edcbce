package subscription

import (
	"bytes"
	_ "embed"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/subhub-go/internal/model"
)

//go:embed assets/clash_base.yaml
var clashBase []byte

const (
	groupProxy = "PROXY"
	groupAuto  = "AUTO"
)

type clashWSOpts struct {
	Path    string            `yaml:"path,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type clashGRPCOpts struct {
	ServiceName string `yaml:"grpc-service-name"`
}

type clashH2Opts struct {
	Host []string `yaml:"host,omitempty"`
	Path string   `yaml:"path,omitempty"`
}

type clashRealityOpts struct {
	PublicKey string `yaml:"public-key"`
	ShortID   string `yaml:"short-id,omitempty"`
}

// clashProxy field order is the order keys appear in the output.
type clashProxy struct {
	Name              string            `yaml:"name"`
	Type              string            `yaml:"type"`
	Server            string            `yaml:"server"`
	Port              int               `yaml:"port"`
	UUID              string            `yaml:"uuid,omitempty"`
	AlterID           *int              `yaml:"alterId,omitempty"`
	Cipher            string            `yaml:"cipher,omitempty"`
	Password          string            `yaml:"password,omitempty"`
	Flow              string            `yaml:"flow,omitempty"`
	UDP               bool              `yaml:"udp"`
	TLS               bool              `yaml:"tls,omitempty"`
	ServerName        string            `yaml:"servername,omitempty"`
	SNI               string            `yaml:"sni,omitempty"`
	ALPN              []string          `yaml:"alpn,omitempty"`
	SkipCertVerify    bool              `yaml:"skip-cert-verify,omitempty"`
	ClientFingerprint string            `yaml:"client-fingerprint,omitempty"`
	RealityOpts       *clashRealityOpts `yaml:"reality-opts,omitempty"`
	Network           string            `yaml:"network,omitempty"`
	WSOpts            *clashWSOpts      `yaml:"ws-opts,omitempty"`
	GRPCOpts          *clashGRPCOpts    `yaml:"grpc-opts,omitempty"`
	H2Opts            *clashH2Opts      `yaml:"h2-opts,omitempty"`
	Plugin            string            `yaml:"plugin,omitempty"`
	PluginOpts        map[string]string `yaml:"plugin-opts,omitempty"`
	Obfs              string            `yaml:"obfs,omitempty"`
	ObfsPassword      string            `yaml:"obfs-password,omitempty"`
}

type clashGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Proxies  []string `yaml:"proxies"`
	URL      string   `yaml:"url,omitempty"`
	Interval int      `yaml:"interval,omitempty"`
}

func clashProxyFor(p model.Proxy) clashProxy {
	c := clashProxy{
		Name:   p.Name,
		Type:   p.Type,
		Server: p.Server,
		Port:   p.Port,
		UDP:    true,
		ALPN:   p.ALPN,
	}
	switch p.Type {
	case "vmess":
		aid := p.AlterID
		c.UUID = p.UUID
		c.AlterID = &aid
		c.Cipher = p.Security
		c.TLS = p.TLS
		c.ServerName = p.SNI
	case "vless":
		c.UUID = p.UUID
		c.Flow = p.Flow
		c.TLS = p.TLS
		c.ServerName = p.SNI
		if p.PublicKey != "" {
			c.RealityOpts = &clashRealityOpts{PublicKey: p.PublicKey, ShortID: p.ShortID}
		}
	case "trojan":
		c.Password = p.Password
		c.SNI = p.SNI
	case "ss":
		c.Cipher = p.Cipher
		c.Password = p.Password
		if plugin, opts := clashPlugin(p); plugin != "" {
			c.Plugin = plugin
			c.PluginOpts = opts
		}
	case "hysteria2":
		c.Password = p.Password
		c.SNI = p.SNI
		c.Obfs = p.Obfs
		c.ObfsPassword = p.ObfsPassword
	}
	c.SkipCertVerify = p.Insecure
	c.ClientFingerprint = p.Fingerprint

	switch p.Network {
	case "ws":
		c.Network = "ws"
		o := &clashWSOpts{Path: p.Path}
		if p.Host != "" {
			o.Headers = map[string]string{"Host": p.Host}
		}
		c.WSOpts = o
	case "grpc":
		c.Network = "grpc"
		c.GRPCOpts = &clashGRPCOpts{ServiceName: p.Path}
	case "h2", "http":
		c.Network = "h2"
		c.H2Opts = &clashH2Opts{Host: splitList(p.Host), Path: p.Path}
	}
	return c
}

// clashPlugin maps SIP003 plugins onto the names Clash understands.
// simple-obfs and obfs-local become "obfs" with mode/host options.
func clashPlugin(p model.Proxy) (string, map[string]string) {
	switch p.PluginName {
	case "":
		return "", nil
	case "simple-obfs", "obfs-local":
		opts := map[string]string{}
		for _, kv := range p.PluginOpts {
			switch strings.TrimSpace(kv.Key) {
			case "obfs":
				opts["mode"] = strings.TrimSpace(kv.Value)
			case "obfs-host":
				opts["host"] = strings.TrimSpace(kv.Value)
			}
		}
		return "obfs", opts
	default:
		opts := map[string]string{}
		for _, kv := range p.PluginOpts {
			opts[kv.Key] = kv.Value
		}
		return p.PluginName, opts
	}
}

// renderClash sets proxies and proxy-groups on base, a YAML mapping, and
// adds a catch-all rule when base has none. Key order of base is kept.
func renderClash(base []byte, proxies []model.Proxy) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(base, &doc); err != nil {
		return nil, buildError(http.StatusUnprocessableEntity, "TEMPLATE_INVALID", "Clash 模板不是合法的 YAML", "render_clash", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, buildError(http.StatusUnprocessableEntity, "TEMPLATE_INVALID", "Clash 模板顶层必须是映射", "render_clash", nil)
	}
	root := doc.Content[0]

	uniqueNames(proxies, groupProxy, groupAuto, "DIRECT", "REJECT")
	names := proxyNames(proxies)

	rendered := make([]clashProxy, len(proxies))
	for i, p := range proxies {
		rendered[i] = clashProxyFor(p)
	}

	selectable := make([]string, 0, len(names)+2)
	selectable = append(selectable, groupAuto)
	selectable = append(selectable, names...)
	selectable = append(selectable, "DIRECT")
	groups := []any{
		clashGroup{Name: groupProxy, Type: "select", Proxies: selectable},
		clashGroup{Name: groupAuto, Type: "url-test", Proxies: names, URL: "http://www.gstatic.com/generate_204", Interval: 300},
	}
	if existing := mappingValue(root, "proxy-groups"); existing != nil && existing.Kind == yaml.SequenceNode {
		for _, g := range existing.Content {
			if name := mappingValue(g, "name"); name != nil && (name.Value == groupProxy || name.Value == groupAuto) {
				continue
			}
			groups = append(groups, g)
		}
	}

	if err := setMappingValue(root, "proxies", rendered); err != nil {
		return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "Clash 节点序列化失败", "render_clash", err)
	}
	if err := setMappingValue(root, "proxy-groups", groups); err != nil {
		return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "Clash 策略组序列化失败", "render_clash", err)
	}
	if rules := mappingValue(root, "rules"); rules == nil || len(rules.Content) == 0 {
		if err := setMappingValue(root, "rules", []string{"MATCH," + groupProxy}); err != nil {
			return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "Clash 规则序列化失败", "render_clash", err)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "Clash 配置序列化失败", "render_clash", err)
	}
	if err := enc.Close(); err != nil {
		return nil, buildError(http.StatusInternalServerError, "RENDER_FAILED", "Clash 配置序列化失败", "render_clash", err)
	}
	return buf.Bytes(), nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value of key in place, or appends the pair.
func setMappingValue(m *yaml.Node, key string, v any) error {
	var val yaml.Node
	if err := val.Encode(v); err != nil {
		return err
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &val
			return nil
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, &val)
	return nil
}
