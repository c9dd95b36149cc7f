package models

import (
	"fmt"
	"slices"
	"strings"

	dErrors "siaga/pkg/domain-errors"
	"siaga/pkg/platform/dedupe"
)

// Role is a closed enumeration with a total order: Citizen < Volunteer < Responder < Admin < SuperAdmin.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleVolunteer  Role = "volunteer"
	RoleResponder  Role = "responder"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleCitizen:    1,
	RoleVolunteer:  2,
	RoleResponder:  3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// AllRoles lists roles from least to most privileged.
func AllRoles() []Role {
	return []Role{RoleCitizen, RoleVolunteer, RoleResponder, RoleAdmin, RoleSuperAdmin}
}

// ParseRole accepts the configuration spelling, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown role %q", s))
	}
	return r, nil
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) String() string { return string(r) }

// AtLeast reports whether r meets or exceeds min. Unknown roles meet nothing.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[min]
}

// RoleTable is the static role to permission lookup loaded from configuration.
type RoleTable struct {
	perms map[Role][]string
}

// NewRoleTable validates the configured table. Every key must be a known role.
func NewRoleTable(cfg map[string][]string) (*RoleTable, error) {
	t := &RoleTable{perms: make(map[Role][]string, len(cfg))}
	for name, perms := range cfg {
		role, err := ParseRole(name)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid role table")
		}
		t.perms[role] = dedupe.AndTrimLower(perms)
	}
	return t, nil
}

// Permissions returns a copy of the role's permission set.
func (t *RoleTable) Permissions(r Role) []string {
	return slices.Clone(t.perms[r])
}

// HasAll reports whether granted covers every required permission. SuperAdmin
// satisfies every check regardless of its snapshot.
func HasAll(role Role, granted, required []string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	for _, p := range required {
		if !slices.Contains(granted, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

// Missing returns the required permissions absent from granted.
func Missing(role Role, granted, required []string) []string {
	if role == RoleSuperAdmin {
		return nil
	}
	var out []string
	for _, p := range required {
		if !slices.Contains(granted, strings.ToLower(p)) {
			out = append(out, p)
		}
	}
	return out
}
