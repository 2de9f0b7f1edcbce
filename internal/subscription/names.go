package subscription

import (
	"net"
	"strconv"
	"strings"

	"github.com/John-Robertt/subhub-go/internal/model"
)

// uniqueNames gives every proxy a non-empty name that no other proxy uses.
// Clients reject configs with duplicate outbound tags.
func uniqueNames(proxies []model.Proxy, reserved ...string) {
	used := make(map[string]int, len(proxies)+len(reserved))
	for _, r := range reserved {
		used[r] = 1
	}
	for i := range proxies {
		name := strings.TrimSpace(proxies[i].Name)
		if name == "" {
			name = net.JoinHostPort(proxies[i].Server, strconv.Itoa(proxies[i].Port))
		}
		base := name
		for n := used[base]; used[name] > 0; {
			n++
			name = base + " " + strconv.Itoa(n)
			used[base] = n
		}
		used[name] = 1
		proxies[i].Name = name
	}
}

func proxyNames(proxies []model.Proxy) []string {
	out := make([]string, len(proxies))
	for i, p := range proxies {
		out[i] = p.Name
	}
	return out
}
