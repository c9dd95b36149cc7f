// Package device derives a display label and a stable fingerprint from a User-Agent.
package device

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Service computes fingerprints when device binding is enabled.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

func (s *Service) Enabled() bool { return s.enabled }

// ParseUserAgent returns a label such as "Chrome on Intel Mac OS X 10_15_7".
func ParseUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return unknownDevice
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := parsed.OS()
	if os == "" {
		os = parsed.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(os)
}

// ComputeFingerprint hashes the parts of the User-Agent that identify a device
// class: browser, browser major version, OS, platform and mobile flag. Minor
// browser updates keep the fingerprint stable.
func (s *Service) ComputeFingerprint(ua string) string {
	if !s.enabled || strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	browser, version := parsed.Browser()
	major, _, _ := strings.Cut(version, ".")
	mobile := "desktop"
	if parsed.Mobile() {
		mobile = "mobile"
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{browser, major, parsed.OS(), parsed.Platform(), mobile}, "|")))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether current matches stored, and whether the
// mismatch is a drift (both present but different).
func (s *Service) CompareFingerprints(stored, current string) (matched bool, drift bool) {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(current)) == 1 {
		return true, false
	}
	return false, stored != "" && current != ""
}
