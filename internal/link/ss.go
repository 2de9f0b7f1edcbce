package link

import (
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/subhub-go/internal/model"
)

// parseSS accepts both SIP002 (ss://b64(method:password)@host:port) and the
// legacy form (ss://b64(method:password@host:port)).
func parseSS(link string) (model.Proxy, error) {
	rest := link[len(KindShadowsocks.Prefix()):]
	withoutFrag, frag, hasFrag := strings.Cut(rest, "#")
	name := ""
	if hasFrag {
		decoded, err := url.PathUnescape(frag)
		if err != nil {
			return model.Proxy{}, newParseError(link, "label decode failed", err)
		}
		name = strings.TrimSpace(decoded)
	}

	withoutQuery, query, _ := strings.Cut(withoutFrag, "?")
	pluginName, pluginOpts := parsePlugin(query)

	withoutQuery = strings.TrimSuffix(withoutQuery, "/")
	if withoutQuery == "" {
		return model.Proxy{}, newParseError(link, "ss link has no body", nil)
	}

	var method, password, hostPortPart string
	if at := strings.LastIndex(withoutQuery, "@"); at >= 0 {
		var err error
		method, password, err = decodeUserInfo(withoutQuery[:at])
		if err != nil {
			return model.Proxy{}, newParseError(link, "ss userinfo decode failed", err)
		}
		hostPortPart = withoutQuery[at+1:]
	} else {
		decoded, err := DecodeBase64(withoutQuery)
		if err != nil {
			return model.Proxy{}, newParseError(link, "ss base64 decode failed", err)
		}
		if !utf8.Valid(decoded) {
			return model.Proxy{}, newParseError(link, "ss base64 payload is not valid utf-8", nil)
		}
		s := string(decoded)
		at := strings.LastIndex(s, "@")
		if at < 0 {
			return model.Proxy{}, newParseError(link, "ss payload has no '@'", nil)
		}
		method, password, err = splitCredentials(s[:at])
		if err != nil {
			return model.Proxy{}, newParseError(link, "ss credentials are invalid", err)
		}
		hostPortPart = s[at+1:]
	}

	server, port, err := splitHostPort(hostPortPart)
	if err != nil {
		return model.Proxy{}, newParseError(link, "ss server or port is invalid", err)
	}
	return model.Proxy{
		Type:       "ss",
		Name:       name,
		Server:     server,
		Port:       port,
		Cipher:     strings.ToLower(method),
		Password:   password,
		PluginName: pluginName,
		PluginOpts: pluginOpts,
	}, nil
}

// decodeUserInfo handles base64 userinfo and the plain percent-encoded
// "method:password" form used by SS2022 links.
func decodeUserInfo(s string) (string, string, error) {
	if b, err := DecodeBase64(s); err == nil && utf8.Valid(b) && strings.Contains(string(b), ":") {
		return splitCredentials(string(b))
	}
	plain, err := url.PathUnescape(s)
	if err != nil {
		return "", "", err
	}
	return splitCredentials(plain)
}

func splitCredentials(s string) (string, string, error) {
	method, password, ok := strings.Cut(s, ":")
	method = strings.TrimSpace(method)
	if !ok || method == "" || password == "" {
		return "", "", errors.New("expected method:password")
	}
	if strings.ContainsAny(method, "\r\n\x00") || strings.ContainsAny(password, "\r\n\x00") {
		return "", "", errors.New("control chars in method/password")
	}
	return method, password, nil
}

// parsePlugin extracts the SIP002 plugin parameter. Other query keys are
// ignored. net/url.ParseQuery is avoided because the plugin value carries
// unescaped semicolons.
func parsePlugin(query string) (string, []model.KV) {
	for _, part := range strings.Split(query, "&") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k != "plugin" {
			continue
		}
		if decoded, err := url.QueryUnescape(v); err == nil {
			v = decoded
		}
		segs := strings.Split(v, ";")
		name := strings.TrimSpace(segs[0])
		if name == "" {
			return "", nil
		}
		opts := make([]model.KV, 0, len(segs)-1)
		for _, seg := range segs[1:] {
			key, val, found := strings.Cut(seg, "=")
			if !found || strings.TrimSpace(key) == "" {
				continue
			}
			opts = append(opts, model.KV{Key: strings.TrimSpace(key), Value: val})
		}
		return name, opts
	}
	return "", nil
}
