package gold

import (
	"fmt"
	"sort"
	"strings"
)

// Every scoring weight lives in this file so the formulas cannot drift
// between views. All scores round to 4 decimals.

// Livability weights walkability and school quality equally on a 0-100 scale.
const (
	livabilityWalkWeight   = 0.5
	livabilitySchoolWeight = 0.5
)

// Investment score components, range [0,1].
const (
	investPopulationWeight   = 0.3
	investLivabilityWeight   = 0.5
	investDesirabilityWeight = 0.2
	investPopulationCap      = 50000.0
	defaultCityDesirability  = 0.50
)

// cityDesirability is a fixed table; cities absent from it score the default.
var cityDesirability = map[string]float64{
	"san francisco":  0.95,
	"park city":      0.90,
	"oakland":        0.85,
	"san jose":       0.80,
	"salt lake city": 0.75,
}

// Search ranking components for wikipedia articles, summing to 1.
const (
	rankQualityWeight  = 0.45
	rankGeoWeight      = 0.25
	rankTitleWeight    = 0.15
	rankPresenceWeight = 0.15
)

// keyTopics maps a category keyword to the topic it tags.
var keyTopics = []string{
	"park", "school", "museum", "transit", "historic",
	"shopping", "restaurant", "beach", "university",
}

func round4(expr string) string {
	return fmt.Sprintf("round(%s, 4)", expr)
}

// LivabilitySQL renders the overall livability score (0-100).
func LivabilitySQL(walkExpr, schoolExpr string) string {
	return round4(fmt.Sprintf("coalesce(%s, 0) * %g + coalesce(%s, 0) * 10 * %g",
		walkExpr, livabilityWalkWeight, schoolExpr, livabilitySchoolWeight))
}

// CityDesirabilitySQL renders the fixed city desirability lookup.
func CityDesirabilitySQL(cityExpr string) string {
	cities := make([]string, 0, len(cityDesirability))
	for c := range cityDesirability {
		cities = append(cities, c)
	}
	sort.Slice(cities, func(i, j int) bool {
		if cityDesirability[cities[i]] != cityDesirability[cities[j]] {
			return cityDesirability[cities[i]] > cityDesirability[cities[j]]
		}
		return cities[i] < cities[j]
	})
	var b strings.Builder
	fmt.Fprintf(&b, "CASE lower(trim(%s))", cityExpr)
	for _, c := range cities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %.2f", c, cityDesirability[c])
	}
	fmt.Fprintf(&b, " ELSE %.2f END", defaultCityDesirability)
	return b.String()
}

// InvestmentSQL renders the investment score over population, livability and
// city desirability, range [0,1].
func InvestmentSQL(popExpr, livabilityExpr, cityExpr string) string {
	return round4(fmt.Sprintf("%g * least(coalesce(%s, 0) / %g, 1.0) + %g * (%s / 100.0) + %g * %s",
		investPopulationWeight, popExpr, investPopulationCap,
		investLivabilityWeight, livabilityExpr,
		investDesirabilityWeight, CityDesirabilitySQL(cityExpr)))
}

// SearchRankingSQL renders the wikipedia search ranking score.
func SearchRankingSQL(qualityExpr, latExpr, lonExpr, titleExpr, assocCountExpr string) string {
	geo := fmt.Sprintf("CASE WHEN %s IS NOT NULL AND %s IS NOT NULL THEN 1.0 ELSE 0.0 END", latExpr, lonExpr)
	title := fmt.Sprintf("greatest(0, 1 - length(%s) / 100.0)", titleExpr)
	presence := fmt.Sprintf("CASE WHEN %s >= 1 THEN 1.0 ELSE 0.0 END", assocCountExpr)
	return round4(fmt.Sprintf("%s * %g + (%s) * %g + (%s) * %g + (%s) * %g",
		qualityExpr, rankQualityWeight,
		geo, rankGeoWeight,
		title, rankTitleWeight,
		presence, rankPresenceWeight))
}

// KeyTopicsSQL renders a list of topic tags matched against the category list.
func KeyTopicsSQL(categoriesExpr string) string {
	parts := make([]string, len(keyTopics))
	for i, topic := range keyTopics {
		parts[i] = fmt.Sprintf(
			"CASE WHEN len(list_filter(%s, c -> lower(c) LIKE '%%%s%%')) > 0 THEN '%s' END",
			categoriesExpr, topic, topic)
	}
	return fmt.Sprintf("list_filter([%s], t -> t IS NOT NULL)", strings.Join(parts, ", "))
}
