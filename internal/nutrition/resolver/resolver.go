// Package resolver turns extracted food items into nutrient totals by
// walking each item's lookup plan across the providers. Resolution never
// fails a request: items that cannot be resolved come back with a
// clarification question and a confidence penalty instead of an error.
package resolver

import (
	"context"
	"fmt"
	"time"

	"foodlog/internal/common/concurrency"
	"foodlog/internal/common/logger"
	"foodlog/internal/common/metrics"
	"foodlog/internal/models"
	"foodlog/internal/nutrition/fdc"
	"foodlog/internal/nutrition/openfoodfacts"
	"foodlog/internal/nutrition/units"
)

const (
	penaltyClarification = 0.2
	penaltyServingBased  = 0.05
)

// OpenFoodFacts is the OFF lookup surface the resolver depends on.
type OpenFoodFacts interface {
	ProductByBarcode(ctx context.Context, barcode string) *openfoodfacts.Product
	Search(ctx context.Context, query, countryISO2 string) []openfoodfacts.Product
}

// FoodDataCentral is the FDC lookup surface the resolver depends on.
type FoodDataCentral interface {
	Enabled() bool
	Search(ctx context.Context, query string) []fdc.Hit
	Food(ctx context.Context, fdcID int) *fdc.Food
}

// Config holds resolver settings.
type Config struct {
	Concurrency int
	CountryISO2 string
}

type Resolver struct {
	off    OpenFoodFacts
	fdc    FoodDataCentral
	config Config
	logger logger.Logger
}

// Result is the aggregate outcome over all items of one request.
type Result struct {
	Items                 []models.FoodItem
	NeedsClarification    bool
	ClarificationQuestion *string
	ConfidencePenalty     float64
}

func New(off OpenFoodFacts, fdcClient FoodDataCentral, cfg Config, log logger.Logger) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Resolver{off: off, fdc: fdcClient, config: cfg, logger: log}
}

type itemOutcome struct {
	foodItem              models.FoodItem
	needsClarification    bool
	clarificationQuestion *string
	confidencePenalty     float64
}

// Resolve looks up every item concurrently and folds the per-item outcomes:
// clarification is needed when any item needs it, the first question wins,
// and the largest penalty applies.
func (r *Resolver) Resolve(ctx context.Context, items []models.ExtractionItem) Result {
	if len(items) == 0 {
		return Result{Items: []models.FoodItem{}}
	}

	outcomes, err := concurrency.Map(ctx, items, r.config.Concurrency,
		func(ctx context.Context, _ int, item models.ExtractionItem) (itemOutcome, error) {
			return r.resolveItem(ctx, item), nil
		})
	if err != nil {
		r.logger.Warn("nutrition resolution aborted", map[string]interface{}{
			"error": err.Error(),
		})
		return Result{Items: []models.FoodItem{}}
	}

	result := Result{Items: make([]models.FoodItem, 0, len(outcomes))}
	for _, out := range outcomes {
		result.Items = append(result.Items, out.foodItem)
		if out.needsClarification {
			result.NeedsClarification = true
			if result.ClarificationQuestion == nil {
				result.ClarificationQuestion = out.clarificationQuestion
			}
		}
		if out.confidencePenalty > result.ConfidencePenalty {
			result.ConfidencePenalty = out.confidencePenalty
		}
	}
	return result
}

func (r *Resolver) resolveItem(ctx context.Context, item models.ExtractionItem) itemOutcome {
	qty := 1.0
	if item.Qty != nil {
		qty = *item.Qty
	}
	unit := "serving"
	if item.Unit != nil {
		unit = *item.Unit
	}

	start := time.Now()
	if grams, ok := units.ToGrams(qty, unit); ok {
		out := r.resolveByGrams(ctx, item, qty, unit, grams)
		metrics.ResolveDuration.WithLabelValues("grams").Observe(time.Since(start).Seconds())
		return out
	}
	if units.IsCountUnit(unit) {
		out := r.resolveByCount(ctx, item, qty, unit)
		metrics.ResolveDuration.WithLabelValues("count").Observe(time.Since(start).Seconds())
		return out
	}

	// Neither a weight nor a countable serving. Ask for grams.
	question := fmt.Sprintf("For %q, how many grams did you eat?", item.ItemName)
	return itemOutcome{
		foodItem:              models.FoodItem{Name: item.ItemName, Quantity: qty, Unit: unit},
		needsClarification:    true,
		clarificationQuestion: &question,
		confidencePenalty:     penaltyClarification,
	}
}

// resolveByGrams finds a per-100g density through the lookup plan and scales
// it by the eaten weight.
func (r *Resolver) resolveByGrams(ctx context.Context, item models.ExtractionItem, qty float64, unit string, grams float64) itemOutcome {
	foodItem := models.FoodItem{Name: item.ItemName, Quantity: qty, Unit: unit}

	per100g := r.findPer100g(ctx, item)
	if per100g == nil {
		question := fmt.Sprintf("I couldn't find nutrition data for %q. Can you provide a brand or barcode?", item.ItemName)
		return itemOutcome{
			foodItem:              foodItem,
			needsClarification:    true,
			clarificationQuestion: &question,
			confidencePenalty:     penaltyClarification,
		}
	}

	foodItem.NutrientsTotal = scalePer100g(per100g, grams)
	return itemOutcome{foodItem: foodItem}
}

// resolveByCount values a count of servings. Per-serving nutrients from the
// provider win outright; otherwise a per-100g density combined with a
// serving gram weight. A density with no known serving weight asks for the
// weight instead of guessing.
func (r *Resolver) resolveByCount(ctx context.Context, item models.ExtractionItem, count float64, unit string) itemOutcome {
	foodItem := models.FoodItem{Name: item.ItemName, Quantity: count, Unit: unit}
	var density *models.NutrientsPer100g

	for _, req := range item.LookupRequests {
		switch req.Provider {
		case models.ProviderOpenFoodFacts:
			var p *openfoodfacts.Product
			if req.Type == models.RequestTypeBarcode {
				p = r.off.ProductByBarcode(ctx, req.Query)
			} else {
				p = offBestHit(r.off.Search(ctx, req.Query, r.config.CountryISO2), item.Brand)
			}
			if p == nil {
				continue
			}
			if perServing := extractOffPerServing(p); perServing != nil {
				foodItem.NutrientsTotal = scalePerServing(perServing, count)
				return itemOutcome{foodItem: foodItem, confidencePenalty: penaltyServingBased}
			}
			per100g := extractOffPer100g(p)
			if per100g == nil {
				continue
			}
			if servingGrams, ok := offServingGrams(p); ok {
				foodItem.NutrientsTotal = scalePer100g(per100g, servingGrams*count)
				return itemOutcome{foodItem: foodItem, confidencePenalty: penaltyServingBased}
			}
			if density == nil {
				density = per100g
			}

		case models.ProviderFoodDataCentral:
			food := r.findFdcFood(ctx, req.Query, item.Brand)
			if food == nil {
				continue
			}
			per100g := extractFdcPer100g(food)
			if per100g == nil {
				continue
			}
			if servingGrams, ok := fdcServingGrams(food, item.ItemName); ok {
				foodItem.NutrientsTotal = scalePer100g(per100g, servingGrams*count)
				return itemOutcome{foodItem: foodItem, confidencePenalty: penaltyServingBased}
			}
			if density == nil {
				density = per100g
			}
		}
	}

	var question string
	if density != nil {
		question = fmt.Sprintf("For %q, how many grams is one %s?", item.ItemName, unitSingular(unit))
	} else {
		question = fmt.Sprintf("I couldn't find nutrition data for %q. Can you provide a brand or barcode?", item.ItemName)
	}
	return itemOutcome{
		foodItem:              foodItem,
		needsClarification:    true,
		clarificationQuestion: &question,
		confidencePenalty:     penaltyClarification,
	}
}

// findPer100g walks the lookup plan in order, short-circuiting on the first
// provider response that yields a density. When the plan is exhausted it
// falls back to text searches with the normalized query: OFF first, FDC
// last.
func (r *Resolver) findPer100g(ctx context.Context, item models.ExtractionItem) *models.NutrientsPer100g {
	for _, req := range item.LookupRequests {
		switch req.Provider {
		case models.ProviderOpenFoodFacts:
			var p *openfoodfacts.Product
			if req.Type == models.RequestTypeBarcode {
				p = r.off.ProductByBarcode(ctx, req.Query)
			} else {
				p = offBestHit(r.off.Search(ctx, req.Query, r.config.CountryISO2), item.Brand)
			}
			if per100g := extractOffPer100g(p); per100g != nil {
				return per100g
			}

		case models.ProviderFoodDataCentral:
			// FDC has no barcode endpoint; barcode requests degrade to text.
			if per100g := extractFdcPer100g(r.findFdcFood(ctx, req.Query, item.Brand)); per100g != nil {
				return per100g
			}
		}
	}

	if item.SearchQuery != "" {
		hit := offBestHit(r.off.Search(ctx, item.SearchQuery, r.config.CountryISO2), item.Brand)
		if per100g := extractOffPer100g(hit); per100g != nil {
			return per100g
		}
		if per100g := extractFdcPer100g(r.findFdcFood(ctx, item.SearchQuery, item.Brand)); per100g != nil {
			return per100g
		}
	}
	return nil
}

func (r *Resolver) findFdcFood(ctx context.Context, query string, brand *string) *fdc.Food {
	if !r.fdc.Enabled() {
		return nil
	}
	hit := fdcBestHit(r.fdc.Search(ctx, query), brand)
	if hit == nil {
		return nil
	}
	return r.fdc.Food(ctx, hit.FdcID)
}

func unitSingular(unit string) string {
	switch unit {
	case "servings":
		return "serving"
	case "portions":
		return "portion"
	case "pieces":
		return "piece"
	case "bars":
		return "bar"
	case "slices":
		return "slice"
	case "porzioni":
		return "porzione"
	case "pezzi":
		return "pezzo"
	default:
		return unit
	}
}
