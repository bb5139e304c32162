package streamavail

type show struct {
	ID               string                       `json:"id"`
	IMDbID           string                       `json:"imdbId"`
	TMDbID           string                       `json:"tmdbId"`
	Title            string                       `json:"title"`
	ShowType         string                       `json:"showType"`
	StreamingOptions map[string][]streamingOption `json:"streamingOptions"`
}

type streamingOption struct {
	Service service `json:"service"`
	Type    string  `json:"type"`
	Link    string  `json:"link"`
	Quality string  `json:"quality"`
	Price   *price  `json:"price"`
}

type service struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	HomePage string   `json:"homePage"`
	ImageSet imageSet `json:"imageSet"`
}

type imageSet struct {
	LightThemeImage string `json:"lightThemeImage"`
	DarkThemeImage  string `json:"darkThemeImage"`
}

type price struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}
