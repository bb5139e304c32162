package affiliate

// partner describes how to link into one service. search is a site search
// URL with {q} standing for the escaped title.
type partner struct {
	search    string
	pathQuery bool

	// Tracked links carry the partner tag in tagParam and the click token in
	// subParam. Services without a tagParam are never tracked.
	tagParam string
	subParam string
	tag      func(Config) string
}

func amazonTag(c Config) string  { return c.AmazonTag }
func appleToken(c Config) string { return c.AppleToken }

// Keys are domain.NormalizeProviderName outputs.
var partners = map[string]partner{
	"netflix":          {search: "https://www.netflix.com/search?q={q}"},
	"disneyplus":       {search: "https://www.disneyplus.com/search?q={q}"},
	"hulu":             {search: "https://www.hulu.com/search?q={q}"},
	"max":              {search: "https://play.max.com/search?q={q}"},
	"paramountplus":    {search: "https://www.paramountplus.com/search/?q={q}"},
	"peacock":          {search: "https://www.peacocktv.com/search?q={q}"},
	"youtube":          {search: "https://www.youtube.com/results?search_query={q}"},
	"googleplay":       {search: "https://play.google.com/store/search?c=movies&q={q}"},
	"fandangoathome":   {search: "https://athome.fandango.com/content/browse/search?searchString={q}"},
	"tubi":             {search: "https://tubitv.com/search/{q}", pathQuery: true},
	"amazonprimevideo": {search: "https://www.amazon.com/s?i=instant-video&k={q}", tagParam: "tag", subParam: "ascsubtag", tag: amazonTag},
	"appletv":          {search: "https://tv.apple.com/search?term={q}", tagParam: "at", subParam: "ct", tag: appleToken},
	"appletvplus":      {search: "https://tv.apple.com/search?term={q}", tagParam: "at", subParam: "ct", tag: appleToken},
	"itunes":           {search: "https://tv.apple.com/search?term={q}", tagParam: "at", subParam: "ct", tag: appleToken},
}
