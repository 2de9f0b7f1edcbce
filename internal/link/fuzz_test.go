package link

import "testing"

func FuzzRelabel(f *testing.F) {
	seed := []string{
		"",
		"ftp://foo",
		"trojan://pass@host:443#Japan",
		"vmess://eyJwcyI6IlVTLTEiLCJhZGQiOiIxLjIuMy40In0=",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201",
		"hysteria2://p@h:443#%zz",
		"vless://u@[::1]:443?security=tls#SG",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, in string) {
		res := Relabel(in)
		if !res.Changed && res.Link != in {
			t.Fatalf("unchanged result rewrote link: %q -> %q", in, res.Link)
		}
		if res.Changed && res.Kind == KindUnknown {
			t.Fatalf("unknown kind reported a change: %q", in)
		}
		if res.Kind != Classify(in) {
			t.Fatalf("kind=%v, want %v", res.Kind, Classify(in))
		}
		_, _ = Parse(in)
	})
}
