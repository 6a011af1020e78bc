package tier

import (
	"skillSwapAPI/internal/types/challenge"
	"skillSwapAPI/internal/types/progression"
)

// requiredTiers maps challenge types to the tier a user must have unlocked
// before joining. Skill challenges are open to every account.
var requiredTiers = map[challenge.Type]progression.Tier{
	challenge.TypeTrade:      progression.TierTrade,
	challenge.TypeCollab:     progression.TierCollab,
	challenge.TypeCommunity:  progression.TierCommunity,
	challenge.TypeMentorship: progression.TierMentorship,
}

// Required returns the tier gating the given challenge type, if any.
func Required(t challenge.Type) (progression.Tier, bool) {
	req, ok := requiredTiers[t]
	return req, ok
}

// Allowed reports whether the unlocked-tier set permits joining a challenge
// of the given type. When gating is disabled by configuration (tier
// soft-launch) everything is allowed. This is evaluated as a pre-check
// before the join transaction; a tier granted concurrently with a denied
// attempt is resolved by the caller retrying.
func Allowed(t challenge.Type, unlocked map[progression.Tier]bool, gatingEnabled bool) bool {
	if !gatingEnabled {
		return true
	}
	req, ok := requiredTiers[t]
	if !ok {
		return true
	}
	return unlocked[req]
}
