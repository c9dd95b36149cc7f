package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siaga/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded by a trusted proxy", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.2:443", want: "203.0.113.9"},
		{name: "client prepends a fake hop", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.9"}, remote: "10.0.0.2:443", want: "203.0.113.9"},
		{name: "real ip header from a trusted proxy", trusted: proxies, headers: map[string]string{"X-Real-IP": " 198.51.100.3 "}, remote: "10.0.0.2:443", want: "198.51.100.3"},
		{name: "spoofed forwarded header from an untrusted peer", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "198.51.100.77"}, remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "spoofed real ip from an untrusted peer", trusted: proxies, headers: map[string]string{"X-Real-IP": "198.51.100.77"}, remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "no trusted proxies ignores headers", headers: map[string]string{"X-Forwarded-For": "198.51.100.77"}, remote: "10.0.0.2:443", want: "10.0.0.2"},
		{name: "garbage forwarded value", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "not-an-ip"}, remote: "10.0.0.2:443", want: "10.0.0.2"},
		{name: "remote addr", remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "remote addr without port", remote: "192.0.2.10", want: "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r, tt.trusted))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1", "2001:db8::/32"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestClientMetadata(t *testing.T) {
	var ip, ua, fp string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
		fp = requestcontext.DeviceFingerprint(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("X-Forwarded-For", "198.51.100.77")
	r.Header.Set(DeviceFingerprintHeader, "fp-123")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.10", ip)
	assert.Equal(t, "curl/8.0", ua)
	assert.Equal(t, "fp-123", fp)
}
