package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"siaga/pkg/requestcontext"
)

// DeviceFingerprintHeader carries the client-computed device fingerprint.
const DeviceFingerprintHeader = "X-Device-Fingerprint"

// maxFingerprintLen bounds what a client can make us store on a session.
const maxFingerprintLen = 128

// ClientMetadata extracts the client IP, User-Agent and device fingerprint from
// the request and adds them to the context. Apply it before anything that
// rate limits or authenticates. Forwarding headers are only read when the
// direct peer is one of the trusted proxies.
func ClientMetadata(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trusted), r.Header.Get("User-Agent"))
			if fp := strings.TrimSpace(r.Header.Get(DeviceFingerprintHeader)); fp != "" && len(fp) <= maxFingerprintLen {
				ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromRequest returns the address of the client. With no trusted
// proxies it is the direct peer. Behind trusted proxies X-Forwarded-For is read
// right to left and the first hop that is not a trusted proxy wins; X-Real-IP
// is used when X-Forwarded-For is absent.
func ClientIPFromRequest(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	// X-Forwarded-For is "client, proxy1, proxy2"
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies parses CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if p, err := netip.ParsePrefix(v); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
