package link

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/subhub-go/internal/model"
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func newParseError(link, message string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    "LINK_PARSE_ERROR",
			Message: message,
			Stage:   "parse_link",
			Snippet: truncateSnippet(link, 200),
		},
		Cause: cause,
	}
}

// Parse extracts the structured proxy description from link.
func Parse(link string) (model.Proxy, error) {
	link = strings.TrimSpace(link)
	switch kind := Classify(link); kind {
	case KindVMess:
		return parseVMess(link)
	case KindVLESS:
		return parseVLESS(link)
	case KindTrojan:
		return parseTrojan(link)
	case KindShadowsocks:
		return parseSS(link)
	case KindHysteria2:
		return parseHysteria2(link)
	default:
		return model.Proxy{}, newParseError(link, "unsupported link scheme", nil)
	}
}

func parseVMess(link string) (model.Proxy, error) {
	data, err := DecodeBase64(link[len(KindVMess.Prefix()):])
	if err != nil {
		return model.Proxy{}, newParseError(link, "vmess base64 decode failed", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Proxy{}, newParseError(link, "vmess json decode failed", err)
	}
	port, err := parsePort(jsonString(doc["port"]))
	if err != nil {
		return model.Proxy{}, newParseError(link, "vmess port is invalid", err)
	}
	p := model.Proxy{
		Type:        "vmess",
		Name:        jsonString(doc["ps"]),
		Server:      strings.TrimSpace(jsonString(doc["add"])),
		Port:        port,
		UUID:        jsonString(doc["id"]),
		Security:    jsonString(doc["scy"]),
		Network:     jsonString(doc["net"]),
		Path:        jsonString(doc["path"]),
		Host:        jsonString(doc["host"]),
		TLS:         jsonString(doc["tls"]) == "tls",
		SNI:         jsonString(doc["sni"]),
		ALPN:        splitList(jsonString(doc["alpn"])),
		Fingerprint: jsonString(doc["fp"]),
	}
	if aid := jsonString(doc["aid"]); aid != "" {
		if n, err := strconv.Atoi(aid); err == nil {
			p.AlterID = n
		}
	}
	if p.Security == "" {
		p.Security = "auto"
	}
	if p.Server == "" || p.UUID == "" {
		return model.Proxy{}, newParseError(link, "vmess add/id is missing", nil)
	}
	return p, nil
}

// jsonString renders a decoded JSON scalar as text; vmess producers disagree
// on whether port/aid are numbers or strings.
func jsonString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// parseURLLink parses the URL shaped families and returns the decoded label.
func parseURLLink(link string, kind Kind) (*url.URL, string, error) {
	u, err := url.Parse("http://" + link[len(kind.Prefix()):])
	if err != nil {
		return nil, "", newParseError(link, kind.String()+" url is invalid", err)
	}
	name := ""
	if _, frag, ok := strings.Cut(link, "#"); ok {
		name, err = url.PathUnescape(frag)
		if err != nil {
			return nil, "", newParseError(link, "label decode failed", err)
		}
	}
	return u, strings.TrimSpace(name), nil
}

func hostPort(link string, u *url.URL) (string, int, error) {
	host := u.Hostname()
	if host == "" {
		return "", 0, newParseError(link, "server is missing", nil)
	}
	port, err := parsePort(u.Port())
	if err != nil {
		return "", 0, newParseError(link, "port is invalid", err)
	}
	return host, port, nil
}

func parseVLESS(link string) (model.Proxy, error) {
	u, name, err := parseURLLink(link, KindVLESS)
	if err != nil {
		return model.Proxy{}, err
	}
	server, port, err := hostPort(link, u)
	if err != nil {
		return model.Proxy{}, err
	}
	if u.User == nil || u.User.Username() == "" {
		return model.Proxy{}, newParseError(link, "vless uuid is missing", nil)
	}
	q := u.Query()
	security := q.Get("security")
	p := model.Proxy{
		Type:        "vless",
		Name:        name,
		Server:      server,
		Port:        port,
		UUID:        u.User.Username(),
		Flow:        q.Get("flow"),
		TLS:         security == "tls" || security == "reality",
		SNI:         q.Get("sni"),
		Fingerprint: q.Get("fp"),
		PublicKey:   q.Get("pbk"),
		ShortID:     q.Get("sid"),
		ALPN:        splitList(q.Get("alpn")),
		Insecure:    truthy(q.Get("allowInsecure")),
	}
	applyTransport(&p, q)
	return p, nil
}

func parseTrojan(link string) (model.Proxy, error) {
	u, name, err := parseURLLink(link, KindTrojan)
	if err != nil {
		return model.Proxy{}, err
	}
	server, port, err := hostPort(link, u)
	if err != nil {
		return model.Proxy{}, err
	}
	if u.User == nil || u.User.Username() == "" {
		return model.Proxy{}, newParseError(link, "trojan password is missing", nil)
	}
	q := u.Query()
	p := model.Proxy{
		Type:        "trojan",
		Name:        name,
		Server:      server,
		Port:        port,
		Password:    u.User.Username(),
		TLS:         q.Get("security") != "none",
		SNI:         firstNonEmpty(q.Get("sni"), q.Get("peer")),
		Fingerprint: q.Get("fp"),
		ALPN:        splitList(q.Get("alpn")),
		Insecure:    truthy(q.Get("allowInsecure")),
	}
	applyTransport(&p, q)
	return p, nil
}

func parseHysteria2(link string) (model.Proxy, error) {
	u, name, err := parseURLLink(link, KindHysteria2)
	if err != nil {
		return model.Proxy{}, err
	}
	server, port, err := hostPort(link, u)
	if err != nil {
		return model.Proxy{}, err
	}
	password := ""
	if u.User != nil {
		// hysteria2 allows "user:pass" as the auth string.
		password = u.User.String()
		if decoded, err := url.PathUnescape(password); err == nil {
			password = decoded
		}
	}
	q := u.Query()
	return model.Proxy{
		Type:         "hysteria2",
		Name:         name,
		Server:       server,
		Port:         port,
		Password:     password,
		TLS:          true,
		SNI:          q.Get("sni"),
		ALPN:         splitList(q.Get("alpn")),
		Insecure:     truthy(q.Get("insecure")),
		Obfs:         q.Get("obfs"),
		ObfsPassword: q.Get("obfs-password"),
	}, nil
}

func applyTransport(p *model.Proxy, q url.Values) {
	p.Network = q.Get("type")
	p.Path = q.Get("path")
	p.Host = q.Get("host")
	if p.Network == "grpc" && p.Path == "" {
		p.Path = q.Get("serviceName")
	}
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty port")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 65535 {
		return 0, errors.New("port out of range")
	}
	return n, nil
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
