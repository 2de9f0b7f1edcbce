package link

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/John-Robertt/subhub-go/internal/region"
)

// Result is the outcome of Relabel. Link is always usable: on failure it is
// the input unchanged and Err describes why the label could not be rewritten.
type Result struct {
	Link    string
	Kind    Kind
	Changed bool
	Err     error
}

var (
	errNotObject  = errors.New("vmess payload is not a JSON object")
	errTrailing   = errors.New("vmess payload has trailing data")
	errNoLabel    = errors.New("link has no label")
	errLabelShape = errors.New("vmess ps is not a string")
	errNoHost     = errors.New("link has no host")
)

// ParseAndRelabel returns link with a region flag added to its label, or the
// input unchanged when the link is unknown, unlabeled or malformed.
func ParseAndRelabel(link string) string {
	return Relabel(link).Link
}

// Relabel rewrites the label of link using region.AddFlag. Only the label
// region changes; every other byte of the link is kept.
func Relabel(link string) Result {
	kind := Classify(link)
	switch kind {
	case KindVMess:
		return relabelVMess(link)
	case KindVLESS, KindTrojan, KindShadowsocks, KindHysteria2:
		return relabelFragment(link, kind)
	default:
		return Result{Link: link, Kind: KindUnknown}
	}
}

func unchanged(link string, kind Kind, err error) Result {
	return Result{Link: link, Kind: kind, Err: err}
}

func relabelFragment(link string, kind Kind) Result {
	if err := checkAuthority(link[len(kind.Prefix()):]); err != nil {
		return unchanged(link, kind, fmt.Errorf("parse %s link: %w", kind, err))
	}
	body, frag, ok := strings.Cut(link, "#")
	if !ok {
		return unchanged(link, kind, errNoLabel)
	}
	label, err := url.PathUnescape(frag)
	if err != nil {
		return unchanged(link, kind, fmt.Errorf("decode %s label: %w", kind, err))
	}
	tagged := region.AddFlag(label)
	if tagged == label {
		return unchanged(link, kind, nil)
	}
	return Result{Link: body + "#" + PctEncode(tagged), Kind: kind, Changed: true}
}

func relabelVMess(link string) Result {
	payload := link[len(KindVMess.Prefix()):]
	data, err := DecodeBase64(payload)
	if err != nil {
		return unchanged(link, KindVMess, fmt.Errorf("decode vmess base64: %w", err))
	}
	fields, err := decodeObject(data)
	if err != nil {
		return unchanged(link, KindVMess, err)
	}

	idx := -1
	for i, f := range fields {
		if f.Key == "ps" {
			idx = i
		}
	}
	if idx < 0 {
		return unchanged(link, KindVMess, errNoLabel)
	}
	var label string
	if err := json.Unmarshal(fields[idx].Value, &label); err != nil {
		return unchanged(link, KindVMess, errLabelShape)
	}
	tagged := region.AddFlag(label)
	if tagged == label {
		return unchanged(link, KindVMess, nil)
	}
	v, err := marshalString(tagged)
	if err != nil {
		return unchanged(link, KindVMess, err)
	}
	fields[idx].Value = v

	out, err := encodeObject(fields)
	if err != nil {
		return unchanged(link, KindVMess, err)
	}
	return Result{
		Link:    KindVMess.Prefix() + base64.StdEncoding.EncodeToString(out),
		Kind:    KindVMess,
		Changed: true,
	}
}

// checkAuthority validates only the host and port of a URL-shaped link.
// Userinfo, path and query are left to the client: passwords often carry
// characters such as '^' or '|' that net/url rejects in userinfo.
func checkAuthority(rest string) error {
	authority := rest
	if i := strings.IndexAny(authority, "/?#"); i >= 0 {
		authority = authority[:i]
	}
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		authority = authority[i+1:]
	}
	u, err := url.Parse("http://" + authority)
	if err != nil {
		return err
	}
	if u.Hostname() == "" {
		return errNoHost
	}
	return nil
}

type field struct {
	Key   string
	Value json.RawMessage
}

// decodeObject reads a JSON object keeping member order.
func decodeObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse vmess json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse vmess json: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse vmess json: %w", err)
		}
		fields = append(fields, field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse vmess json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailing
	}
	return fields, nil
}

// encodeObject writes fields back as a compact JSON object.
func encodeObject(fields []field) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := marshalString(f.Key)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		if err := json.Compact(&b, f.Value); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// marshalString encodes s without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// PctEncode percent-encodes s for use in a URL fragment or query value.
// ASCII letters, digits and -_.!~*'() are kept as-is; every other byte
// becomes %XX with upper-case hex.
func PctEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if componentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
