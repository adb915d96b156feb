package slugmap

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type series struct {
	en, fr string
}

// Known data series and their slug stems in each language.
var seriesStems = map[string]series{
	"consumer price index":            {"cpi", "ipc"},
	"labour force survey":             {"lfs", "epa"},
	"retail trade":                    {"retail-trade", "commerce-detail"},
	"retail sales":                    {"retail-sales", "ventes-detail"},
	"gross domestic product":          {"gdp", "pib"},
	"international merchandise trade": {"trade", "commerce-international"},
	"building permits":                {"building-permits", "permis-batir"},
}

// Slugs carry no accents ("aout", "decembre").
var frenchMonths = [...]string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin",
	"juillet", "aout", "septembre", "octobre", "novembre", "decembre",
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Generate derives the EN/FR slug pair for an article about seriesName at
// period ("2006-01", the reference month of the release), e.g.
// ("Consumer Price Index", "2025-11") -> cpi-november-2025 / ipc-novembre-2025.
// Series without a known translation use the same stem in both languages.
func Generate(seriesName, period string) (Entry, error) {
	ref, err := time.Parse("2006-01", strings.TrimSpace(period))
	if err != nil {
		return Entry{}, fmt.Errorf("invalid period %q: want YYYY-MM", period)
	}

	stems, ok := seriesStems[strings.ToLower(strings.TrimSpace(seriesName))]
	if !ok {
		stem := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(seriesName), "-"), "-")
		if stem == "" {
			return Entry{}, fmt.Errorf("invalid series name %q", seriesName)
		}
		stems = series{en: stem, fr: stem}
	}

	year := ref.Year()
	return Entry{
		EN: fmt.Sprintf("%s-%s-%d", stems.en, strings.ToLower(ref.Month().String()), year),
		FR: fmt.Sprintf("%s-%s-%d", stems.fr, frenchMonths[ref.Month()-1], year),
	}, nil
}
