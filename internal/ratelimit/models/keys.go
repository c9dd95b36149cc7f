package models

import "strings"

// Scope is the principal class a key is counted against.
type Scope string

const (
	ScopeUser Scope = "user"
	ScopeIP   Scope = "ip"
)

// Key identifies one rate limit counter.
type Key struct {
	Scope      Scope
	Identifier string
	Action     string
}

func UserKey(userID, action string) Key {
	return Key{Scope: ScopeUser, Identifier: userID, Action: action}
}

func IPKey(ip, action string) Key {
	return Key{Scope: ScopeIP, Identifier: ip, Action: action}
}

// String renders scope:identifier:action with each segment sanitized.
func (k Key) String() string {
	return SanitizeKeySegment(string(k.Scope)) + ":" +
		SanitizeKeySegment(k.Identifier) + ":" + SanitizeKeySegment(k.Action)
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments so a
// user-controlled identifier such as "user:admin" cannot address a neighbouring counter.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
