package auth

import "strings"

// Permission keys guarding the administrative and collaborator surfaces.
const (
	PermLiquidityWrite   = "bnpl.liquidity.write"
	PermMerchantWrite    = "bnpl.merchant.write"
	PermLoanSweep        = "bnpl.loan.sweep"
	PermScoreCollaborate = "bnpl.score.collaborate"
)

// Built-in roles. The protocol has a small fixed set of actors, so the
// role to permission mapping is static rather than store-backed.
const (
	RoleAdmin        = "admin"
	RoleCollaborator = "collaborator"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermLiquidityWrite,
		PermMerchantWrite,
		PermLoanSweep,
		PermScoreCollaborate,
	},
	RoleCollaborator: {
		PermScoreCollaborate,
	},
}

// Principal is an authenticated caller with resolved permissions.
type Principal struct {
	Subject     string
	Roles       []string
	permissions map[string]struct{}
}

// NewPrincipal resolves a claim set into a principal.
func NewPrincipal(subject string, roles []string) Principal {
	perms := make(map[string]struct{})
	normalized := dedupeRoles(roles)
	for _, role := range normalized {
		for _, perm := range rolePermissions[role] {
			perms[perm] = struct{}{}
		}
	}
	return Principal{
		Subject:     strings.TrimSpace(subject),
		Roles:       normalized,
		permissions: perms,
	}
}

// HasPermission reports whether the principal holds the given permission.
func (p Principal) HasPermission(perm string) bool {
	_, ok := p.permissions[perm]
	return ok
}
