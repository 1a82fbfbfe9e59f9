package conversation

import "strings"

// Canonical service categories. Classification output, semantic rules and
// tenant catalogs all normalize into this set before comparison.
const (
	CategoryMassage        = "MASSAGE"
	CategorySpa            = "SPA"
	CategoryLocalTours     = "LOCAL_TOURS"
	CategoryConferenceRoom = "CONFERENCE_ROOM"
	CategoryDining         = "DINING"
	CategoryActivities     = "ACTIVITIES"
	CategoryFoodBeverage   = "FOOD_BEVERAGE"
	CategoryHousekeeping   = "HOUSEKEEPING"
	CategoryMaintenance    = "MAINTENANCE"
	CategoryConcierge      = "CONCIERGE"
	CategoryUnknown        = "UNKNOWN"
)

// categoryAliases maps legacy and model-invented labels onto canonical ones.
var categoryAliases = map[string]string{
	"SPA_WELLNESS":           CategoryMassage,
	"WELLNESS":               CategoryMassage,
	"ACTIVITIES_EXPERIENCES": CategoryLocalTours,
	"BUSINESS":               CategoryConferenceRoom,
}

var bookableCategories = map[string]bool{
	CategoryMassage:        true,
	CategorySpa:            true,
	CategoryLocalTours:     true,
	CategoryConferenceRoom: true,
	CategoryDining:         true,
	CategoryActivities:     true,
}

// NormalizeCategory folds an arbitrary category label into the canonical
// form: upper case, underscores, aliases resolved. Empty input stays empty.
func NormalizeCategory(category string) string {
	c := strings.ToUpper(strings.TrimSpace(category))
	if c == "" {
		return ""
	}
	c = strings.ReplaceAll(c, " ", "_")
	if canonical, ok := categoryAliases[c]; ok {
		return canonical
	}
	return c
}

// IsBookable reports whether a category represents an offering guests can
// book a slot for, as opposed to request-and-deliver categories.
func IsBookable(category string) bool {
	return bookableCategories[NormalizeCategory(category)]
}

// categoriesOverlap compares two category labels leniently: after
// normalization either label may appear in the other as a whole word run,
// with underscores and spaces treated as equivalent. "spa" matches
// "spa_services" but not "sparkling water".
func categoriesOverlap(a, b string) bool {
	na := strings.ToLower(strings.ReplaceAll(NormalizeCategory(a), "_", " "))
	nb := strings.ToLower(strings.ReplaceAll(NormalizeCategory(b), "_", " "))
	if na == "" || nb == "" {
		return false
	}
	return containsWords(na, nb) || containsWords(nb, na)
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
