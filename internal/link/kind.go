// Package link classifies proxy links and rewrites or extracts their labels.
//
// Five link families are supported. vmess carries a base64 JSON document whose
// "ps" field is the label; vless, trojan, ss and hysteria2 are URL shaped and
// keep the label in the fragment.
package link

import "strings"

type Kind int

const (
	KindUnknown Kind = iota
	KindVMess
	KindVLESS
	KindTrojan
	KindShadowsocks
	KindHysteria2
)

// Kinds lists every known kind in classification order.
var Kinds = []Kind{KindVMess, KindVLESS, KindTrojan, KindShadowsocks, KindHysteria2}

func (k Kind) String() string {
	switch k {
	case KindVMess:
		return "vmess"
	case KindVLESS:
		return "vless"
	case KindTrojan:
		return "trojan"
	case KindShadowsocks:
		return "ss"
	case KindHysteria2:
		return "hysteria2"
	default:
		return "unknown"
	}
}

// Prefix returns the scheme prefix including "://", or "" for KindUnknown.
func (k Kind) Prefix() string {
	if k == KindUnknown {
		return ""
	}
	return k.String() + "://"
}

// Classify identifies the link family by a case-insensitive scheme prefix.
func Classify(text string) Kind {
	for _, k := range Kinds {
		p := k.Prefix()
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			return k
		}
	}
	return KindUnknown
}

// IsProxyLink reports whether text starts with one of the known prefixes.
func IsProxyLink(text string) bool {
	return Classify(text) != KindUnknown
}
