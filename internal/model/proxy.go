package model

type KV struct {
	Key   string
	Value string
}

// Proxy is the structured form of a single proxy link, used by the
// subscription builders. Fields that a protocol does not use stay zero.
type Proxy struct {
	// Type is one of "vmess", "vless", "trojan", "ss", "hysteria2".
	Type string

	// Name is the decoded label (vmess "ps" or the URL fragment). It may be
	// empty and is not guaranteed to be unique; builders deduplicate.
	Name string

	Server string
	Port   int

	UUID     string // vmess / vless
	AlterID  int    // vmess
	Security string // vmess cipher ("auto" when absent)
	Flow     string // vless

	Password string // trojan / ss / hysteria2
	Cipher   string // ss

	// Transport.
	Network string // tcp / ws / grpc / http
	Path    string
	Host    string

	// TLS.
	TLS         bool
	SNI         string
	ALPN        []string
	Fingerprint string
	Insecure    bool
	PublicKey   string // reality
	ShortID     string // reality

	// hysteria2
	Obfs         string
	ObfsPassword string

	// ss plugin, order preserved.
	PluginName string
	PluginOpts []KV
}
