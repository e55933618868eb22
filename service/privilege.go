package service

import "github.com/layer-3/fluxauth/core"

// PrivilegeResolver maps an address to a tier using the two configured
// reference identities.
type PrivilegeResolver struct {
	team  string
	admin string
}

func NewPrivilegeResolver(teamAddress, adminAddress string) *PrivilegeResolver {
	return &PrivilegeResolver{team: teamAddress, admin: adminAddress}
}

// Resolve returns the tier reported to a freshly logged in address.
func (r *PrivilegeResolver) Resolve(address string) core.Tier {
	switch {
	case r.team != "" && address == r.team:
		return core.TierFluxTeam
	case r.admin != "" && address == r.admin:
		return core.TierAdmin
	default:
		return core.TierUser
	}
}

// IsAdmin reports whether address is the operator identity.
func (r *PrivilegeResolver) IsAdmin(address string) bool {
	return r.admin != "" && address == r.admin
}

// IsTeam reports whether address is the team identity.
func (r *PrivilegeResolver) IsTeam(address string) bool {
	return r.team != "" && address == r.team
}
