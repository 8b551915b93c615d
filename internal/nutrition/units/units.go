// Package units handles quantity interpretation: gram conversion for weight
// units, count detection for serving-style units, and display conversion
// between metric and imperial.
package units

import (
	"math"
	"strings"

	"foodlog/internal/models"
)

// UnitSystem selects the display unit family.
type UnitSystem string

const (
	SystemMetric   UnitSystem = "metric"
	SystemImperial UnitSystem = "imperial"
)

const (
	gramsPerKg = 1000
	gramsPerMg = 0.001
	gramsPerOz = 28.3495
	gramsPerLb = 453.592
)

// ToGrams converts a quantity in a supported weight unit to grams. The
// second return is false for volumes, count units, and anything unknown.
func ToGrams(qty float64, unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gram", "grams":
		return qty, true
	case "kg", "kilogram", "kilograms":
		return qty * gramsPerKg, true
	case "mg", "milligram", "milligrams":
		return qty * gramsPerMg, true
	case "oz", "ounce", "ounces":
		return qty * gramsPerOz, true
	case "lb", "lbs", "pound", "pounds":
		return qty * gramsPerLb, true
	default:
		return 0, false
	}
}

// FromGrams converts grams back into the named weight unit.
func FromGrams(grams float64, unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gram", "grams":
		return grams, true
	case "kg", "kilogram", "kilograms":
		return grams / gramsPerKg, true
	case "mg", "milligram", "milligrams":
		return grams / gramsPerMg, true
	case "oz", "ounce", "ounces":
		return grams / gramsPerOz, true
	case "lb", "lbs", "pound", "pounds":
		return grams / gramsPerLb, true
	default:
		return 0, false
	}
}

var countUnits = map[string]bool{
	"serving":  true,
	"servings": true,
	"portion":  true,
	"portions": true,
	"piece":    true,
	"pieces":   true,
	"bar":      true,
	"bars":     true,
	"slice":    true,
	"slices":   true,
	"porzione": true,
	"porzioni": true,
	"pezzo":    true,
	"pezzi":    true,
}

// IsCountUnit reports whether the unit counts whole servings rather than
// measuring weight or volume.
func IsCountUnit(unit string) bool {
	return countUnits[strings.ToLower(strings.TrimSpace(unit))]
}

var (
	metricWeights = map[string]float64{
		"g": 1, "gram": 1, "grams": 1,
		"kg": gramsPerKg, "kilogram": gramsPerKg, "kilograms": gramsPerKg,
		"mg": gramsPerMg, "milligram": gramsPerMg, "milligrams": gramsPerMg,
	}
	imperialWeights = map[string]float64{
		"oz": gramsPerOz, "ounce": gramsPerOz, "ounces": gramsPerOz,
		"lb": gramsPerLb, "lbs": gramsPerLb, "pound": gramsPerLb, "pounds": gramsPerLb,
	}
	metricVolumesToMl = map[string]float64{
		"ml": 1, "milliliter": 1, "milliliters": 1,
		"l": 1000, "liter": 1000, "liters": 1000,
	}
	imperialVolumesToMl = map[string]float64{
		"fl oz": 29.5735, "fluid ounce": 29.5735, "fluid ounces": 29.5735,
		"cup": 236.588, "cups": 236.588,
		"tbsp": 14.7868, "tablespoon": 14.7868, "tablespoons": 14.7868,
		"tsp": 4.92892, "teaspoon": 4.92892, "teaspoons": 4.92892,
		"pint": 473.176, "pints": 473.176,
		"quart": 946.353, "quarts": 946.353,
		"gallon": 3785.41, "gallons": 3785.41,
	}
)

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ConvertFoodItem converts the display quantity and unit of a resolved food
// item to the requested unit system. Count units and already-converted
// items pass through unchanged.
func ConvertFoodItem(item models.FoodItem, system UnitSystem) models.FoodItem {
	unit := strings.ToLower(strings.TrimSpace(item.Unit))
	if unit == "" {
		return item
	}

	if system == SystemMetric {
		if factor, ok := imperialWeights[unit]; ok {
			grams := item.Quantity * factor
			if grams >= 1000 {
				item.Quantity = round1(grams / 1000)
				item.Unit = "kg"
			} else {
				item.Quantity = math.Round(grams)
				item.Unit = "g"
			}
			return item
		}
		if factor, ok := imperialVolumesToMl[unit]; ok {
			ml := item.Quantity * factor
			if ml >= 1000 {
				item.Quantity = round1(ml / 1000)
				item.Unit = "l"
			} else {
				item.Quantity = math.Round(ml)
				item.Unit = "ml"
			}
			return item
		}
		return item
	}

	if factor, ok := metricWeights[unit]; ok {
		oz := item.Quantity * factor / gramsPerOz
		switch {
		case oz >= 16:
			item.Quantity = round1(oz / 16)
			item.Unit = "lbs"
		case oz < 1:
			item.Quantity = round2(oz)
			item.Unit = "oz"
		default:
			item.Quantity = round1(oz)
			item.Unit = "oz"
		}
		return item
	}
	if factor, ok := metricVolumesToMl[unit]; ok {
		item.Quantity = round1(item.Quantity * factor / 29.5735)
		item.Unit = "fl oz"
		return item
	}
	return item
}
