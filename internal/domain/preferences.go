package domain

// PreferenceSet narrows which platform entries a viewer sees. Empty fields
// mean "no constraint".
type PreferenceSet struct {
	PreferredPlatforms     []string     `json:"preferred_platforms,omitempty"`
	ExcludedPlatforms      []string     `json:"excluded_platforms,omitempty"`
	SubscriptionTypes      []AccessType `json:"subscription_types,omitempty" validate:"omitempty,dive,oneof=subscription rent buy free"`
	OnlyAffiliateSupported bool         `json:"only_affiliate_supported,omitempty"`
}

// IsEmpty reports whether applying p would be an identity transform. A nil
// set is empty, and so is a platform list of blank names.
func (p *PreferenceSet) IsEmpty() bool {
	if p == nil {
		return true
	}
	return !hasNames(p.PreferredPlatforms) &&
		!hasNames(p.ExcludedPlatforms) &&
		len(p.SubscriptionTypes) == 0 &&
		!p.OnlyAffiliateSupported
}

func hasNames(names []string) bool {
	for _, n := range names {
		if NormalizeProviderName(n) != "" {
			return true
		}
	}
	return false
}
