package resolver

import (
	"strconv"
	"strings"

	"foodlog/internal/models"
	"foodlog/internal/nutrition/fdc"
	"foodlog/internal/nutrition/openfoodfacts"
)

const kcalPerKJ = 4.184

// getNumber coerces OFF nutriment values, which arrive as JSON numbers or
// numeric strings depending on the product.
func getNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func offNutriment(p *openfoodfacts.Product, key string) (float64, bool) {
	if p.Nutriments == nil {
		return 0, false
	}
	return getNumber(p.Nutriments[key])
}

// extractOffPer100g reads the per-100g nutrient density from an OFF product.
// Energy falls back from kcal to kJ. Returns nil when no nutrient at all is
// present.
func extractOffPer100g(p *openfoodfacts.Product) *models.NutrientsPer100g {
	return extractOffNutrients(p, "_100g")
}

// extractOffPerServing reads the per-serving nutrient values when the
// product declares them.
func extractOffPerServing(p *openfoodfacts.Product) *models.NutrientsPer100g {
	return extractOffNutrients(p, "_serving")
}

func extractOffNutrients(p *openfoodfacts.Product, suffix string) *models.NutrientsPer100g {
	if p == nil || p.Nutriments == nil {
		return nil
	}

	kcal, kcalOk := offNutriment(p, "energy-kcal"+suffix)
	if !kcalOk {
		if kj, ok := offNutriment(p, "energy"+suffix); ok {
			kcal, kcalOk = kj/kcalPerKJ, true
		}
	}
	protein, proteinOk := offNutriment(p, "proteins"+suffix)
	carbs, carbsOk := offNutriment(p, "carbohydrates"+suffix)
	fat, fatOk := offNutriment(p, "fat"+suffix)

	if !kcalOk && !proteinOk && !carbsOk && !fatOk {
		return nil
	}
	return &models.NutrientsPer100g{
		Calories: kcal,
		ProteinG: protein,
		CarbsG:   carbs,
		FatG:     fat,
	}
}

// extractFdcPer100g reads the per-100g density from an FDC food record.
// FDC energy is occasionally reported in kJ and converted here.
func extractFdcPer100g(food *fdc.Food) *models.NutrientsPer100g {
	if food == nil || len(food.FoodNutrients) == 0 {
		return nil
	}

	find := func(name string) *fdc.Nutrient {
		for i := range food.FoodNutrients {
			if strings.EqualFold(food.FoodNutrients[i].NutrientName, name) {
				return &food.FoodNutrients[i]
			}
		}
		return nil
	}

	energy := find("Energy")
	protein := find("Protein")
	carbs := find("Carbohydrate, by difference")
	fat := find("Total lipid (fat)")

	if energy == nil && protein == nil && carbs == nil && fat == nil {
		return nil
	}

	out := &models.NutrientsPer100g{}
	if energy != nil {
		out.Calories = energy.Value
		if strings.EqualFold(energy.UnitName, "KJ") {
			out.Calories = energy.Value / kcalPerKJ
		}
	}
	if protein != nil {
		out.ProteinG = protein.Value
	}
	if carbs != nil {
		out.CarbsG = carbs.Value
	}
	if fat != nil {
		out.FatG = fat.Value
	}
	return out
}

func normalizeBrand(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// offBestHit prefers the hit whose brands field mentions the extracted
// brand, falling back to the first hit.
func offBestHit(hits []openfoodfacts.Product, brand *string) *openfoodfacts.Product {
	if len(hits) == 0 {
		return nil
	}
	if brand == nil {
		return &hits[0]
	}
	b := normalizeBrand(*brand)
	for i := range hits {
		if strings.Contains(normalizeBrand(hits[i].Brands), b) {
			return &hits[i]
		}
	}
	return &hits[0]
}

// fdcBestHit prefers the hit whose brandOwner mentions the extracted brand.
func fdcBestHit(hits []fdc.Hit, brand *string) *fdc.Hit {
	if len(hits) == 0 {
		return nil
	}
	if brand == nil {
		return &hits[0]
	}
	b := normalizeBrand(*brand)
	for i := range hits {
		if strings.Contains(normalizeBrand(hits[i].BrandOwner), b) {
			return &hits[i]
		}
	}
	return &hits[0]
}

func scalePer100g(per100g *models.NutrientsPer100g, grams float64) *models.NutrientTotals {
	factor := grams / 100
	return &models.NutrientTotals{
		Calories: per100g.Calories * factor,
		ProteinG: per100g.ProteinG * factor,
		CarbsG:   per100g.CarbsG * factor,
		FatG:     per100g.FatG * factor,
	}
}

func scalePerServing(perServing *models.NutrientsPer100g, count float64) *models.NutrientTotals {
	return &models.NutrientTotals{
		Calories: perServing.Calories * count,
		ProteinG: perServing.ProteinG * count,
		CarbsG:   perServing.CarbsG * count,
		FatG:     perServing.FatG * count,
	}
}
