package api

import (
	"net"
	"net/http"
	"strings"
)

// getRealIP resolves the client IP, honoring forwarded headers only when
// the direct peer is a trusted proxy
func getRealIP(r *http.Request, trustProxy bool, trustedNetworks []string) string {
	if !trustProxy {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return ip
	}

	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	if isTrustedProxy(directIP, trustedNetworks) {
		// X-Forwarded-For can contain multiple IPs, take the first one
		xff := r.Header.Get("X-Forwarded-For")
		if xff != "" {
			ips := strings.Split(xff, ",")
			if len(ips) > 0 {
				ip := strings.TrimSpace(ips[0])
				if ip != "" && net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		xri := r.Header.Get("X-Real-IP")
		if xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	return directIP
}

// isTrustedProxy checks if an IP address is in the list of trusted proxy networks
func isTrustedProxy(ip string, trustedNetworks []string) bool {
	if len(trustedNetworks) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, network := range trustedNetworks {
		_, cidr, err := net.ParseCIDR(network)
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
