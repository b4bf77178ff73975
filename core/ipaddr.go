package core

import (
	"net/netip"
	"strings"
)

// privateRanges covers RFC 1918, CGNAT, loopback and link-local space.
// Parsed once at init; MustParsePrefix panics only on a bad literal.
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
}

// NormalizeIP cleans up an IP string as reported by agents and proxies:
// strips an IPv6-mapped IPv4 prefix, removes brackets, and folds localhost
// spellings to 127.0.0.1. Returns the empty string for empty input.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")

	if strings.HasPrefix(strings.ToLower(ip), "::ffff:") {
		ip = ip[len("::ffff:"):]
	}

	if ip == "::1" || ip == "localhost" {
		return "127.0.0.1"
	}

	return ip
}

// IsValidIP reports whether the string parses as an IPv4 or IPv6 address
func IsValidIP(ip string) bool {
	_, err := netip.ParseAddr(NormalizeIP(ip))
	return err == nil
}

// IsPrivateIP reports whether the address is in non-routable space
// (RFC 1918, CGNAT, loopback, link-local, or IPv6 ULA/link-local).
func IsPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(NormalizeIP(ip))
	if err != nil {
		return false
	}

	if addr.Is6() {
		return addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsPrivate()
	}

	for _, r := range privateRanges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
