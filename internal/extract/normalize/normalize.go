// Package normalize repairs and canonicalizes extractions before nutrition
// resolution: barcode cleanup, search-query rebuild, lookup-plan rebuild,
// duplicate removal, and the clarification recompute.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"foodlog/internal/models"
)

var (
	barcodeRe       = regexp.MustCompile(`^\d{8,14}$`)
	barcodeInTextRe = regexp.MustCompile(`\b(\d{8,14})\b`)
	qtyUnitRe       = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*(g|kg|ml|l|oz|lb|lbs)\b\s*`)
	bareQtyRe       = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\b\s*`)
	conjunctionRe   = regexp.MustCompile(`(?i)^(.*?)(?:\s+\be\b|\s+\band\b)\s+(.*)$`)
	mealPrefixRe    = regexp.MustCompile(`(?i)^\s*(for\s+)?(breakfast|lunch|dinner|snack)\s*:\s*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	// Quantities are dropped from search queries but percentages are variant
	// hints ("yogurt 0%") and stay.
	numberRe    = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b\s*%?`)
	unitWordRe  = regexp.MustCompile(`\b(g|gram|grams|kg|ml|l|oz|lb|lbs|cup|cups|tbsp|tsp)\b`)
	mealWordRe  = regexp.MustCompile(`\b(breakfast|lunch|dinner|snack)\b`)
	punctRe     = regexp.MustCompile(`[,:;"'()\[\]{}]`)
	packagedRe  = regexp.MustCompile(`(?i)\b(biscotti|biscotto|cereali|merendina|merendine|cracker|patatine|chips|barretta|barrette|cioccolato|gelato|bibita|bevanda|soda)\b`)
)

func compactSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func normalizeBarcode(barcode *string) *string {
	if barcode == nil {
		return nil
	}
	cleaned := strings.Join(strings.Fields(*barcode), "")
	if !barcodeRe.MatchString(cleaned) {
		return nil
	}
	return &cleaned
}

func barcodeFromUserText(userText string) *string {
	m := barcodeInTextRe.FindStringSubmatch(userText)
	if m == nil {
		return nil
	}
	code := m[1]
	return normalizeBarcode(&code)
}

// buildSearchQuery strips quantities, units, meal words, the brand, and
// punctuation from the item name, falling back to the raw name when nothing
// survives.
func buildSearchQuery(fallback, itemName string, brand *string) string {
	base := strings.ToLower(itemName)
	if base == "" {
		base = strings.ToLower(fallback)
	}

	s := numberRe.ReplaceAllStringFunc(base, func(m string) string {
		if strings.HasSuffix(m, "%") {
			return m
		}
		return " "
	})
	s = unitWordRe.ReplaceAllString(s, " ")
	s = mealWordRe.ReplaceAllString(s, " ")
	if brand != nil {
		brandRe, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(*brand)) + `\b`)
		if err == nil {
			s = brandRe.ReplaceAllString(s, " ")
		}
	}
	s = punctRe.ReplaceAllString(s, " ")

	cleaned := compactSpaces(s)
	if cleaned == "" {
		return compactSpaces(base)
	}
	return cleaned
}

func soundsPackaged(itemName string) bool {
	return packagedRe.MatchString(itemName)
}

// rebuildLookupRequests derives the provider plan from the item fields:
// a barcode goes straight to Open Food Facts, a brand fans out to both
// text searches, and a generic item goes to FoodData Central with Open Food
// Facts as fallback only when the name sounds like a packaged product.
func rebuildLookupRequests(item models.ExtractionItem) []models.LookupRequest {
	if item.Barcode != nil {
		return []models.LookupRequest{
			{Provider: models.ProviderOpenFoodFacts, Type: models.RequestTypeBarcode, Query: *item.Barcode},
		}
	}

	if item.Brand != nil {
		q := compactSpaces(item.ItemName + " " + *item.Brand)
		return []models.LookupRequest{
			{Provider: models.ProviderOpenFoodFacts, Type: models.RequestTypeText, Query: q},
			{Provider: models.ProviderFoodDataCentral, Type: models.RequestTypeText, Query: q},
		}
	}

	reqs := []models.LookupRequest{
		{Provider: models.ProviderFoodDataCentral, Type: models.RequestTypeText, Query: item.SearchQuery},
	}
	if soundsPackaged(item.ItemName) {
		reqs = append(reqs, models.LookupRequest{
			Provider: models.ProviderOpenFoodFacts, Type: models.RequestTypeText, Query: item.SearchQuery,
		})
	}
	return reqs
}

type splitPart struct {
	itemName string
	qty      *float64
	unit     *string
}

func parseQty(s string) *float64 {
	n, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &n
}

// trySplitSingleItem re-splits a one-item extraction from the raw text when
// a conjunction joins two clearly quantified foods. Conservative: both sides
// must start with a quantity or the split is abandoned.
func trySplitSingleItem(userText string) []splitPart {
	t := strings.TrimSpace(mealPrefixRe.ReplaceAllString(compactSpaces(userText), ""))

	m := conjunctionRe.FindStringSubmatch(t)
	if m == nil {
		return nil
	}
	left := strings.TrimSpace(m[1])
	right := strings.TrimSpace(m[2])

	m1 := qtyUnitRe.FindStringSubmatch(left)
	if m1 == nil {
		return nil
	}

	var qty2 *float64
	var unit2 *string
	var name2 string
	if m2 := qtyUnitRe.FindStringSubmatch(right); m2 != nil {
		qty2 = parseQty(m2[1])
		u := strings.ToLower(m2[2])
		unit2 = &u
		name2 = compactSpaces(right[len(m2[0]):])
	} else if m2 := bareQtyRe.FindStringSubmatch(right); m2 != nil {
		// allow "1 banana"
		qty2 = parseQty(m2[1])
		name2 = compactSpaces(right[len(m2[0]):])
	} else {
		return nil
	}

	qty1 := parseQty(m1[1])
	unit1 := strings.ToLower(m1[2])
	name1 := compactSpaces(left[len(m1[0]):])

	if qty1 == nil || qty2 == nil || name1 == "" || name2 == "" {
		return nil
	}
	return []splitPart{
		{itemName: name1, qty: qty1, unit: &unit1},
		{itemName: name2, qty: qty2, unit: unit2},
	}
}

// Normalize returns a repaired copy of the extraction. It never mutates its
// input and is idempotent.
func Normalize(extraction *models.Extraction, userText, isoDatetime string) *models.Extraction {
	datetimeLocal := compactSpaces(extraction.DatetimeLocal)
	if datetimeLocal == "" {
		datetimeLocal = isoDatetime
	}
	detectedBarcode := barcodeFromUserText(userText)
	singleItem := len(extraction.Items) == 1

	var baseItems []models.ExtractionItem
	if singleItem {
		if parts := trySplitSingleItem(userText); parts != nil {
			for _, p := range parts {
				baseItems = append(baseItems, models.ExtractionItem{
					ItemName:       p.itemName,
					Qty:            p.qty,
					Unit:           p.unit,
					SearchQuery:    strings.ToLower(p.itemName),
					LookupRequests: []models.LookupRequest{},
				})
			}
		}
	}
	if baseItems == nil {
		baseItems = extraction.Items
	}

	items := make([]models.ExtractionItem, 0, len(baseItems))
	for _, it := range baseItems {
		itemName := compactSpaces(it.ItemName)

		var brand *string
		if it.Brand != nil {
			b := compactSpaces(*it.Brand)
			brand = &b
		}

		barcode := normalizeBarcode(it.Barcode)
		if barcode == nil && detectedBarcode != nil && singleItem {
			barcode = detectedBarcode
		}

		fallback := it.SearchQuery
		if fallback == "" {
			fallback = userText
		}

		var unit *string
		if it.Unit != nil {
			u := compactSpaces(*it.Unit)
			unit = &u
		}

		normalized := models.ExtractionItem{
			ItemName:    itemName,
			Qty:         it.Qty,
			Unit:        unit,
			Brand:       brand,
			Barcode:     barcode,
			SearchQuery: buildSearchQuery(fallback, itemName, brand),
			Notes:       it.Notes,
		}
		normalized.LookupRequests = rebuildLookupRequests(normalized)
		items = append(items, normalized)
	}

	// Small models sometimes repeat the same item twice.
	seen := make(map[string]bool, len(items))
	deduped := make([]models.ExtractionItem, 0, len(items))
	for _, it := range items {
		key, err := json.Marshal(it)
		if err != nil {
			key = []byte(fmt.Sprintf("%v", it))
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		deduped = append(deduped, it)
	}

	var firstMissing *models.ExtractionItem
	for i := range deduped {
		if deduped[i].Qty == nil || deduped[i].Unit == nil {
			firstMissing = &deduped[i]
			break
		}
	}

	needsClarification := extraction.NeedsClarification || firstMissing != nil
	var question *string
	if needsClarification {
		if extraction.ClarificationQuestion != nil {
			question = extraction.ClarificationQuestion
		} else if firstMissing != nil {
			q := fmt.Sprintf("For %q, how many grams?", firstMissing.ItemName)
			question = &q
		}
	}

	confidence := extraction.Confidence
	if needsClarification && confidence > 0.69 {
		confidence = 0.69
	}

	return &models.Extraction{
		Meal:                  extraction.Meal,
		DatetimeLocal:         datetimeLocal,
		Items:                 deduped,
		NeedsClarification:    needsClarification,
		ClarificationQuestion: question,
		Confidence:            confidence,
	}
}
