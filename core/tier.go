package core

// Tier is the coarse privilege level derived from an address.
type Tier string

const (
	TierNone     Tier = "none"
	TierUser     Tier = "user"
	TierFluxTeam Tier = "fluxteam"
	TierAdmin    Tier = "admin"
)

// String returns the tier name.
func (t Tier) String() string {
	return string(t)
}

// Authenticated reports whether the tier belongs to a logged in caller.
func (t Tier) Authenticated() bool {
	switch t {
	case TierUser, TierFluxTeam, TierAdmin:
		return true
	}
	return false
}
