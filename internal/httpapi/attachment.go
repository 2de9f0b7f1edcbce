package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/subhub-go/internal/subscription"
)

func setAttachmentHeaders(w http.ResponseWriter, collectionName string, target subscription.Target) {
	filename := outputFileName(collectionName, target)
	// Add both filename and filename* for better UTF-8 compatibility.
	w.Header().Set("Content-Disposition", contentDispositionAttachment(filename))
}

// outputFileName derives a download name from the collection name. Names
// that cannot be used as a file name fall back to the target.
func outputFileName(collectionName string, target subscription.Target) string {
	base := strings.TrimSpace(collectionName)
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, base)
	if len(base) > 200 {
		base = truncateUTF8(base, 200)
	}
	if base == "" {
		base = string(target)
	}

	if !strings.HasSuffix(strings.ToLower(base), target.Ext()) {
		base += target.Ext()
	}
	return base
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")

	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, pctEncode(filename))
}

func pctEncode(s string) string {
	// RFC 3986 percent-encoding. QueryEscape uses '+' for spaces, which we
	// rewrite to %20.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
