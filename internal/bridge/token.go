package bridge

import (
	"crypto/md5"
	"encoding/hex"
	"net"
	"os"
	"strings"
)

// DeriveToken computes the bridge API username for the local host: the hex
// MD5 of "ph-" plus the fully-qualified hostname. The scheme is the one
// python-hue registers with, so a host re-derives the same token on every
// invocation without storing anything.
func DeriveToken() string {
	return TokenFor(fqdn())
}

// TokenFor derives the API username for the given host identity.
func TokenFor(host string) string {
	sum := md5.Sum([]byte("ph-" + host))
	return hex.EncodeToString(sum[:])
}

// fqdn returns the local fully-qualified hostname. Resolution is
// best-effort: hosts without working reverse DNS fall back to the bare
// hostname, which still yields a stable token for that host.
func fqdn() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return host
	}
	for _, addr := range addrs {
		names, err := net.LookupAddr(addr)
		if err != nil || len(names) == 0 {
			continue
		}
		return strings.TrimSuffix(names[0], ".")
	}
	return host
}
