package domain

import "time"

type LinkKind string

const (
	LinkTracked    LinkKind = "tracked"
	LinkSiteSearch LinkKind = "site_search"
	LinkWebSearch  LinkKind = "web_search"
)

// AffiliateLink is the outbound URL built for one platform entry.
type AffiliateLink struct {
	URL   string   `json:"url"`
	Kind  LinkKind `json:"kind"`
	Token string   `json:"token,omitempty"`
}

// ClickEvent records an outbound click. It never carries the raw user id.
type ClickEvent struct {
	ID            string    `json:"id"`
	TrackingToken string    `json:"tracking_token,omitempty"`
	ContentID     int64     `json:"content_id"`
	ProviderName  string    `json:"provider_name"`
	LinkKind      LinkKind  `json:"link_kind"`
	CreatedAt     time.Time `json:"created_at"`
}
