package password

import (
	"strings"
	"unicode"

	"siaga/pkg/platform/dedupe"
)

// Reasons reported by Policy.Validate.
const (
	ReasonTooShort           = "too_short"
	ReasonMissingUpper       = "missing_upper"
	ReasonMissingLower       = "missing_lower"
	ReasonMissingDigit       = "missing_digit"
	ReasonMissingSymbol      = "missing_symbol"
	ReasonForbiddenSubstring = "forbidden_substring"
	ReasonBlacklisted        = "blacklisted"
)

type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// ForbiddenSubstrings are matched case-insensitively anywhere in the password.
	ForbiddenSubstrings []string
	Blacklist           *Blacklist
}

// Validate returns every reason s fails the policy; an empty result means it passes.
func (p Policy) Validate(s string) []string {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, ReasonTooShort)
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, ReasonMissingUpper)
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, ReasonMissingLower)
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, ReasonMissingDigit)
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, ReasonMissingSymbol)
	}
	lower := strings.ToLower(s)
	for _, sub := range dedupe.AndTrimLower(p.ForbiddenSubstrings) {
		if strings.Contains(lower, sub) {
			reasons = append(reasons, ReasonForbiddenSubstring)
			break
		}
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, ReasonBlacklisted)
	}
	return reasons
}
