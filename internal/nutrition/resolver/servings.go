package resolver

import (
	"regexp"
	"strings"

	"foodlog/internal/nutrition/fdc"
	"foodlog/internal/nutrition/openfoodfacts"
)

var servingSizeRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(g|gram|grams|gr)\b`)

// offServingGrams derives one serving's gram weight from an OFF product:
// the declared serving_size string first, then the package quantity when it
// is given in grams.
func offServingGrams(p *openfoodfacts.Product) (float64, bool) {
	if p == nil {
		return 0, false
	}
	if m := servingSizeRe.FindStringSubmatch(p.ServingSize); m != nil {
		if grams, ok := getNumber(strings.ReplaceAll(m[1], ",", ".")); ok && grams > 0 {
			return grams, true
		}
	}
	if strings.EqualFold(strings.TrimSpace(p.ProductQuantityUnit), "g") {
		if grams, ok := getNumber(p.ProductQuantity); ok && grams > 0 {
			return grams, true
		}
	}
	return 0, false
}

// fdcServingGrams derives one serving's gram weight from an FDC food: the
// declared serving size when expressed in grams, otherwise the best-scored
// food portion for the item name.
func fdcServingGrams(food *fdc.Food, itemName string) (float64, bool) {
	if food == nil {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(food.ServingSizeUnit)) {
	case "g", "gram", "grams", "grm":
		if food.ServingSize > 0 {
			return food.ServingSize, true
		}
	}
	if portion := bestPortion(food.FoodPortions, itemName); portion != nil {
		return portion.GramWeight, true
	}
	return 0, false
}

// bestPortion scores the food portions against the item name and returns the
// highest-scoring one. A unit-quantity portion scores 2, "medium" scores 1,
// and each item-name token found in the portion text scores 3. Portions that
// match nothing are rejected.
func bestPortion(portions []fdc.Portion, itemName string) *fdc.Portion {
	var best *fdc.Portion
	bestScore := 0

	tokens := nameTokens(itemName)
	for i := range portions {
		p := &portions[i]
		if p.GramWeight <= 0 {
			continue
		}
		desc := strings.ToLower(strings.TrimSpace(
			p.PortionDescription + " " + p.Modifier + " " + p.MeasureUnit.Name))

		score := 0
		if strings.HasPrefix(desc, "1 ") {
			score += 2
		}
		if strings.Contains(desc, "medium") {
			score++
		}
		for _, tok := range tokens {
			if strings.Contains(desc, tok) {
				score += 3
			}
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

func nameTokens(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
