package link

import (
	"encoding/base64"
	"strings"
)

// DecodeBase64 tries the standard alphabet (padded, then raw) and the URL-safe
// alphabet (padded, then raw). ASCII whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = stripSpace(s)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n\f") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n', '\f':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
