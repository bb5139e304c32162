package tmdb

type watchProvidersResponse struct {
	ID      int64                   `json:"id"`
	Results map[string]regionOffers `json:"results"`
}

type regionOffers struct {
	Link     string         `json:"link"`
	Flatrate []providerItem `json:"flatrate"`
	Free     []providerItem `json:"free"`
	Ads      []providerItem `json:"ads"`
	Rent     []providerItem `json:"rent"`
	Buy      []providerItem `json:"buy"`
}

type providerItem struct {
	ProviderID      int64  `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	LogoPath        string `json:"logo_path"`
	DisplayPriority int    `json:"display_priority"`
}
