// Package privacy holds helpers that keep personal data out of logs.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"
)

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4, /48 for IPv6).
// Unparseable input is returned as "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "invalid"
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}

// HashIdentifier returns a short stable digest for correlating an identity in logs.
func HashIdentifier(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:8])
}
