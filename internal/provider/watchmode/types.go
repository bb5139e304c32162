package watchmode

type source struct {
	SourceID int64    `json:"source_id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Region   string   `json:"region"`
	WebURL   string   `json:"web_url"`
	Format   string   `json:"format"`
	Price    *float64 `json:"price"`
}
