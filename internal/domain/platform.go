package domain

type AccessType string

const (
	AccessSubscription AccessType = "subscription"
	AccessRent         AccessType = "rent"
	AccessBuy          AccessType = "buy"
	AccessFree         AccessType = "free"
)

// Premium reports whether the access type costs the viewer money.
func (a AccessType) Premium() bool {
	switch a {
	case AccessSubscription, AccessRent, AccessBuy:
		return true
	}
	return false
}

func (a AccessType) Valid() bool {
	return a.Premium() || a == AccessFree
}

// Source identifies the provider client that produced an entry.
type Source string

const (
	SourceTMDB        Source = "tmdb"
	SourceWatchmode   Source = "watchmode"
	SourceStreamAvail Source = "streamavail"
)

type PlatformEntry struct {
	ProviderID         string     `json:"provider_id"`
	ProviderName       string     `json:"provider_name"`
	AccessType         AccessType `json:"access_type"`
	Source             Source     `json:"source"`
	AffiliateSupported bool       `json:"affiliate_supported"`
	WebURL             string     `json:"web_url,omitempty"`
	Price              *float64   `json:"price,omitempty"`
	Currency           string     `json:"currency,omitempty"`
	LogoRef            string     `json:"logo_ref,omitempty"`
}

// NormalizedName is the dedup and matching key for the entry's service.
func (p PlatformEntry) NormalizedName() string {
	return NormalizeProviderName(p.ProviderName)
}

type Summary struct {
	TotalPlatforms     int `json:"total_platforms"`
	AffiliatePlatforms int `json:"affiliate_platforms"`
	PremiumPlatforms   int `json:"premium_platforms"`
	FreePlatforms      int `json:"free_platforms"`
}

// Summarize counts platforms by access type and affiliate support.
func Summarize(platforms []PlatformEntry) Summary {
	s := Summary{TotalPlatforms: len(platforms)}
	for _, p := range platforms {
		if p.AffiliateSupported {
			s.AffiliatePlatforms++
		}
		if p.AccessType.Premium() {
			s.PremiumPlatforms++
		} else if p.AccessType == AccessFree {
			s.FreePlatforms++
		}
	}
	return s
}
