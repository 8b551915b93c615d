// Package fastpath parses simple food-log utterances with regular
// expressions, avoiding a model call for the common "qty unit name" shapes.
// It returns nil whenever the utterance is not trivially parseable, which
// routes the request to the language-model extractor instead.
package fastpath

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"foodlog/internal/common/metrics"
	"foodlog/internal/extract/mealinfer"
	"foodlog/internal/models"
)

var (
	barcodeRe    = regexp.MustCompile(`\b(\d{8,14})\b`)
	mealPrefixRe = regexp.MustCompile(`(?i)^\s*(for\s+)?(breakfast|lunch|dinner|snack)\s*:\s*`)
	segmentRe    = regexp.MustCompile(`(?i)\s*(?:,|;|\be\b|\band\b)\s+`)

	qtyUnitNameRe = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*(g|gram|grams|kg|kilogram|kilograms|mg|milligram|milligrams|ml|milliliter|milliliters|l|liter|liters|oz|ounce|ounces|lb|lbs|pound|pounds)\b\s*(.+?)\s*$`)
	qtyNameRe     = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\b\s+(.+?)\s*$`)

	timeHintClockRe = regexp.MustCompile(`(?i)\bat\s+\d{1,2}(?::\d{2})?\s*(am|pm)\b`)
	timeHintWordRe  = regexp.MustCompile(`(?i)\b(today|yesterday|this morning|tonight)\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	wordBarcodeRe   = regexp.MustCompile(`(?i)\bbarcode\b`)
)

var approxWords = map[string]bool{
	"about":         true,
	"approx":        true,
	"approximately": true,
	"circa":         true,
	"moreless":      true,
	"more or less":  true,
	"ca":            true,
}

// Input carries the request fields the fast path needs.
type Input struct {
	ISODatetime string
	Timezone    string
	UserText    string
}

type parsedSegment struct {
	itemName   string
	qty        *float64
	unit       *string
	confidence float64
}

func parseNumber(s string) *float64 {
	n, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &n
}

func normalizeUnit(u string) string {
	switch strings.ToLower(u) {
	case "g", "gram", "grams":
		return "g"
	case "kg", "kilogram", "kilograms":
		return "kg"
	case "mg", "milligram", "milligrams":
		return "mg"
	case "ml", "milliliter", "milliliters":
		return "ml"
	case "l", "liter", "liters":
		return "l"
	case "oz", "ounce", "ounces":
		return "oz"
	case "lb", "lbs", "pound", "pounds":
		return "lb"
	default:
		return strings.ToLower(u)
	}
}

func stripTimeHints(name string) string {
	s := timeHintClockRe.ReplaceAllString(name, "")
	s = timeHintWordRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func stripMealPrefix(s string) string {
	return strings.TrimSpace(mealPrefixRe.ReplaceAllString(s, ""))
}

func splitSegments(text string) []string {
	var out []string
	for _, seg := range segmentRe.Split(stripMealPrefix(text), -1) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func parseSegment(seg string) parsedSegment {
	// 200 g yogurt
	if m := qtyUnitNameRe.FindStringSubmatch(seg); m != nil {
		unit := normalizeUnit(m[2])
		return parsedSegment{
			itemName:   stripTimeHints(strings.TrimSpace(m[3])),
			qty:        parseNumber(m[1]),
			unit:       &unit,
			confidence: 1,
		}
	}

	// 1 banana (unitless)
	if m := qtyNameRe.FindStringSubmatch(seg); m != nil {
		return parsedSegment{
			itemName:   stripTimeHints(strings.TrimSpace(m[2])),
			qty:        parseNumber(m[1]),
			confidence: 0.8,
		}
	}

	return parsedSegment{itemName: stripTimeHints(strings.TrimSpace(seg)), confidence: 0.5}
}

func deriveItemNameFromBarcodeText(text string) string {
	withoutBarcode := barcodeRe.ReplaceAllString(wordBarcodeRe.ReplaceAllString(text, ""), "")
	cleaned := strings.ReplaceAll(stripMealPrefix(withoutBarcode), ".", " ")
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return "Prodotto"
	}
	return cleaned
}

// Extract attempts a regex-only extraction. It returns nil when the text is
// too ambiguous for the fast path: no parseable segments, or no explicit
// quantity anywhere (the model does better splitting and naming there).
func Extract(in Input) *models.Extraction {
	loggedAt, err := time.Parse(time.RFC3339, in.ISODatetime)
	if err != nil {
		loggedAt = time.Now()
	}
	meal := mealinfer.Infer(in.UserText, loggedAt, in.Timezone)

	if m := barcodeRe.FindStringSubmatch(in.UserText); m != nil {
		barcode := m[1]
		name := deriveItemNameFromBarcodeText(in.UserText)
		metrics.FastPathExtractions.WithLabelValues("accepted").Inc()
		return &models.Extraction{
			Meal:          meal,
			DatetimeLocal: in.ISODatetime,
			Items: []models.ExtractionItem{
				{
					ItemName:    name,
					Barcode:     &barcode,
					SearchQuery: strings.ToLower(name),
					LookupRequests: []models.LookupRequest{
						{Provider: models.ProviderOpenFoodFacts, Type: models.RequestTypeBarcode, Query: barcode},
					},
				},
			},
			Confidence: 0.9,
		}
	}

	var parsed []parsedSegment
	for _, seg := range splitSegments(in.UserText) {
		p := parseSegment(seg)
		if p.itemName != "" {
			parsed = append(parsed, p)
		}
	}
	if len(parsed) == 0 {
		metrics.FastPathExtractions.WithLabelValues("declined").Inc()
		return nil
	}

	// Without any explicit quantity the model splits and names items better.
	hasQty := false
	for _, p := range parsed {
		if p.qty != nil {
			hasQty = true
			break
		}
	}
	if !hasQty {
		metrics.FastPathExtractions.WithLabelValues("declined").Inc()
		return nil
	}

	// A trailing "100 g about/circa" segment is an approximation of the
	// previous item; fold it in as grams.
	last := &parsed[len(parsed)-1]
	if len(parsed) >= 2 && last.qty != nil && last.unit != nil && normalizeUnit(*last.unit) == "g" &&
		(last.itemName == "" || approxWords[strings.ToLower(last.itemName)]) {
		prev := &parsed[len(parsed)-2]
		grams := "g"
		prev.qty = last.qty
		prev.unit = &grams
		parsed = parsed[:len(parsed)-1]
	}

	sum := 0.0
	for _, p := range parsed {
		sum += p.confidence
	}
	confidence := sum / float64(len(parsed))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	items := make([]models.ExtractionItem, 0, len(parsed))
	for _, p := range parsed {
		items = append(items, models.ExtractionItem{
			ItemName:       p.itemName,
			Qty:            p.qty,
			Unit:           p.unit,
			SearchQuery:    strings.ToLower(p.itemName),
			LookupRequests: []models.LookupRequest{},
		})
	}

	metrics.FastPathExtractions.WithLabelValues("accepted").Inc()
	return &models.Extraction{
		Meal:          meal,
		DatetimeLocal: in.ISODatetime,
		Items:         items,
		Confidence:    confidence,
	}
}
