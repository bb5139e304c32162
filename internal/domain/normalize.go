package domain

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Ad-supported tiers are the same service for matching purposes.
var adTierSuffixes = []string{"standardwithads", "basicwithads", "withads"}

var providerAliases = map[string]string{
	"primevideo":               "amazonprimevideo",
	"amazonprime":              "amazonprimevideo",
	"amazonvideo":              "amazonprimevideo",
	"amazoninstantvideo":       "amazonprimevideo",
	"hbomax":                   "max",
	"hbonow":                   "max",
	"hbogo":                    "max",
	"paramountpluspremium":     "paramountplus",
	"paramountplusessential":   "paramountplus",
	"peacockpremium":           "peacock",
	"peacockpremiumplus":       "peacock",
	"appletvplusamazonchannel": "appletvplus",
	"googleplaymovies":         "googleplay",
	"googleplaystore":          "googleplay",
	"vudu":                     "fandangoathome",
	"youtubemovies":            "youtube",
	"tubitv":                   "tubi",
}

// NormalizeProviderName maps a display name onto the canonical key shared by
// merge, preference filtering and link generation. "Amazon Prime Video" and
// "Prime Video" both become "amazonprimevideo".
func NormalizeProviderName(name string) string {
	s := strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
	s = strings.ReplaceAll(s, "+", "plus")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	key := b.String()

	for _, suffix := range adTierSuffixes {
		if len(key) > len(suffix) && strings.HasSuffix(key, suffix) {
			key = strings.TrimSuffix(key, suffix)
			break
		}
	}

	if alias, ok := providerAliases[key]; ok {
		return alias
	}
	return key
}
