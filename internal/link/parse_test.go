package link

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestParse_VMess(t *testing.T) {
	doc := `{"v":"2","ps":"HK 01","add":"hk.example.com","port":443,"id":"11111111-2222-3333-4444-555555555555","aid":"0","scy":"","net":"ws","path":"/ray","host":"cdn.example.com","tls":"tls","sni":"hk.example.com"}`
	p, err := Parse("vmess://" + base64.StdEncoding.EncodeToString([]byte(doc)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != "vmess" || p.Name != "HK 01" || p.Server != "hk.example.com" || p.Port != 443 {
		t.Fatalf("proxy=%+v", p)
	}
	if p.Security != "auto" {
		t.Fatalf("security=%q, want auto", p.Security)
	}
	if p.Network != "ws" || p.Path != "/ray" || p.Host != "cdn.example.com" || !p.TLS {
		t.Fatalf("transport/tls=%+v", p)
	}
}

func TestParse_VMessStringPort(t *testing.T) {
	doc := `{"ps":"x","add":"h","port":"8080","id":"u","aid":"2"}`
	p, err := Parse("vmess://" + base64.StdEncoding.EncodeToString([]byte(doc)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Port != 8080 || p.AlterID != 2 {
		t.Fatalf("port/aid=%d/%d, want 8080/2", p.Port, p.AlterID)
	}
}

func TestParse_VLESSReality(t *testing.T) {
	p, err := Parse("vless://uuid-1@r.example.com:443?security=reality&sni=www.example.com&fp=chrome&pbk=PUB&sid=ab&flow=xtls-rprx-vision&type=tcp#JP%2001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UUID != "uuid-1" || p.Name != "JP 01" || !p.TLS || p.PublicKey != "PUB" || p.ShortID != "ab" || p.Flow != "xtls-rprx-vision" {
		t.Fatalf("proxy=%+v", p)
	}
}

func TestParse_Trojan(t *testing.T) {
	p, err := Parse("trojan://secret@t.example.com:443?sni=t.example.com&type=grpc&serviceName=svc#Japan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Password != "secret" || !p.TLS || p.Network != "grpc" || p.Path != "svc" || p.Name != "Japan" {
		t.Fatalf("proxy=%+v", p)
	}
}

func TestParse_SS_SIP002(t *testing.T) {
	p, err := Parse("ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=simple-obfs%3Bobfs%3Dtls%3Bobfs-host%3Dexample.com#Node%201")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cipher != "aes-128-gcm" || p.Password != "pass" || p.Server != "example.com" || p.Port != 8388 || p.Name != "Node 1" {
		t.Fatalf("proxy=%+v", p)
	}
	if p.PluginName != "simple-obfs" || len(p.PluginOpts) != 2 || p.PluginOpts[0].Key != "obfs" || p.PluginOpts[1].Value != "example.com" {
		t.Fatalf("plugin=%q opts=%+v", p.PluginName, p.PluginOpts)
	}
}

func TestParse_SS_Legacy(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:pw@1.2.3.4:8389"))
	p, err := Parse("ss://" + body + "#legacy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cipher != "aes-256-gcm" || p.Password != "pw" || p.Server != "1.2.3.4" || p.Port != 8389 {
		t.Fatalf("proxy=%+v", p)
	}
}

func TestParse_SS_PlainUserInfo(t *testing.T) {
	p, err := Parse("ss://2022-blake3-aes-128-gcm:a2V5%3D@[::1]:8388#v6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cipher != "2022-blake3-aes-128-gcm" || p.Password != "a2V5=" || p.Server != "::1" {
		t.Fatalf("proxy=%+v", p)
	}
}

func TestParse_Hysteria2(t *testing.T) {
	p, err := Parse("hysteria2://secret@hy.example.com:8443?sni=hy.example.com&obfs=salamander&obfs-password=ob&insecure=1#HK%2001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Password != "secret" || p.Obfs != "salamander" || p.ObfsPassword != "ob" || !p.Insecure || p.Port != 8443 {
		t.Fatalf("proxy=%+v", p)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"ftp://foo",
		"vmess://@@@",
		"vless://h.example.com:443#x",
		"trojan://p@h.example.com:0#x",
		"ss://bm9wZQ==@h:1",
		"hysteria2://p@:443",
	}
	for _, in := range cases {
		_, err := Parse(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q) err=%T %v, want *ParseError", in, err, err)
		}
		if pe.AppError.Stage != "parse_link" {
			t.Fatalf("stage=%q, want parse_link", pe.AppError.Stage)
		}
	}
}
