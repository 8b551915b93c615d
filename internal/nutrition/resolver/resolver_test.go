package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/internal/common/logger"
	"foodlog/internal/models"
	"foodlog/internal/nutrition/fdc"
	"foodlog/internal/nutrition/openfoodfacts"
)

// ==========================
// Fakes
// ==========================

type fakeOFF struct {
	products     map[string]*openfoodfacts.Product
	searches     map[string][]openfoodfacts.Product
	barcodeCalls []string
	searchCalls  []string
}

func (f *fakeOFF) ProductByBarcode(_ context.Context, barcode string) *openfoodfacts.Product {
	f.barcodeCalls = append(f.barcodeCalls, barcode)
	return f.products[barcode]
}

func (f *fakeOFF) Search(_ context.Context, query, _ string) []openfoodfacts.Product {
	f.searchCalls = append(f.searchCalls, query)
	return f.searches[query]
}

type fakeFDC struct {
	enabled     bool
	hits        map[string][]fdc.Hit
	foods       map[int]*fdc.Food
	searchCalls []string
}

func (f *fakeFDC) Enabled() bool { return f.enabled }

func (f *fakeFDC) Search(_ context.Context, query string) []fdc.Hit {
	f.searchCalls = append(f.searchCalls, query)
	return f.hits[query]
}

func (f *fakeFDC) Food(_ context.Context, fdcID int) *fdc.Food {
	return f.foods[fdcID]
}

func newResolver(t *testing.T, off *fakeOFF, fdcClient *fakeFDC) *Resolver {
	t.Helper()
	if off == nil {
		off = &fakeOFF{}
	}
	if fdcClient == nil {
		fdcClient = &fakeFDC{}
	}
	return New(off, fdcClient, Config{Concurrency: 2, CountryISO2: "IT"}, logger.NewTestLogger(t))
}

func numPtr(v float64) *float64 { return &v }
func strPtr(s string) *string   { return &s }

func yogurtProduct() *openfoodfacts.Product {
	return &openfoodfacts.Product{
		Code:        "8000500310427",
		ProductName: "Greek Yogurt 0%",
		Nutriments: map[string]interface{}{
			"energy-kcal_100g":    59.0,
			"proteins_100g":       10.3,
			"carbohydrates_100g":  3.6,
			"fat_100g":            0.4,
		},
	}
}

func gramItem(name string, qty float64, unit string, reqs ...models.LookupRequest) models.ExtractionItem {
	return models.ExtractionItem{
		ItemName:       name,
		Qty:            numPtr(qty),
		Unit:           strPtr(unit),
		SearchQuery:    name,
		LookupRequests: reqs,
	}
}

// ==========================
// 1. Gram Strategy
// ==========================

func TestResolve_GramsViaBarcode(t *testing.T) {
	off := &fakeOFF{products: map[string]*openfoodfacts.Product{
		"8000500310427": yogurtProduct(),
	}}
	r := newResolver(t, off, nil)

	item := gramItem("greek yogurt", 200, "g", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeBarcode,
		Query:    "8000500310427",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.Len(t, result.Items, 1)
	assert.False(t, result.NeedsClarification)
	assert.Zero(t, result.ConfidencePenalty)

	got := result.Items[0]
	require.NotNil(t, got.NutrientsTotal)
	assert.InDelta(t, 118.0, got.NutrientsTotal.Calories, 1e-9)
	assert.InDelta(t, 20.6, got.NutrientsTotal.ProteinG, 1e-9)
	assert.InDelta(t, 7.2, got.NutrientsTotal.CarbsG, 1e-9)
	assert.InDelta(t, 0.8, got.NutrientsTotal.FatG, 1e-9)
	assert.Equal(t, 200.0, got.Quantity)
	assert.Equal(t, "g", got.Unit)
}

func TestResolve_KilojouleFallback(t *testing.T) {
	off := &fakeOFF{products: map[string]*openfoodfacts.Product{
		"4000100000017": {
			ProductName: "Muesli",
			Nutriments: map[string]interface{}{
				"energy_100g":   "1500",
				"proteins_100g": 8.0,
			},
		},
	}}
	r := newResolver(t, off, nil)

	item := gramItem("muesli", 100, "g", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeBarcode,
		Query:    "4000100000017",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.NotNil(t, result.Items[0].NutrientsTotal)
	assert.InDelta(t, 1500.0/4.184, result.Items[0].NutrientsTotal.Calories, 1e-9)
}

func TestResolve_PlanShortCircuits(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"banana": {*yogurtProduct()},
	}}
	fdcClient := &fakeFDC{enabled: true}
	r := newResolver(t, off, fdcClient)

	item := gramItem("banana", 100, "g",
		models.LookupRequest{Provider: models.ProviderOpenFoodFacts, Type: models.RequestTypeText, Query: "banana"},
		models.LookupRequest{Provider: models.ProviderFoodDataCentral, Type: models.RequestTypeText, Query: "banana"},
	)

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.NotNil(t, result.Items[0].NutrientsTotal)
	assert.Empty(t, fdcClient.searchCalls, "second provider should not be queried once the first resolves")
}

func TestResolve_FallbackSearchAfterPlanExhausted(t *testing.T) {
	off := &fakeOFF{}
	fdcClient := &fakeFDC{
		enabled: true,
		hits:    map[string][]fdc.Hit{"banana": {{FdcID: 1105314, Description: "Banana, raw"}}},
		foods: map[int]*fdc.Food{1105314: {
			FdcID: 1105314,
			FoodNutrients: []fdc.Nutrient{
				{NutrientName: "Energy", UnitName: "KCAL", Value: 89},
				{NutrientName: "Protein", UnitName: "G", Value: 1.1},
			},
		}},
	}
	r := newResolver(t, off, fdcClient)

	item := gramItem("banana", 100, "g", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeBarcode,
		Query:    "00000000",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.NotNil(t, result.Items[0].NutrientsTotal)
	assert.InDelta(t, 89.0, result.Items[0].NutrientsTotal.Calories, 1e-9)
	// OFF text fallback runs before FDC.
	assert.Equal(t, []string{"banana"}, off.searchCalls)
	assert.Equal(t, []string{"banana"}, fdcClient.searchCalls)
}

func TestResolve_FdcKilojouleEnergy(t *testing.T) {
	fdcClient := &fakeFDC{
		enabled: true,
		hits:    map[string][]fdc.Hit{"oats": {{FdcID: 7}}},
		foods: map[int]*fdc.Food{7: {
			FoodNutrients: []fdc.Nutrient{
				{NutrientName: "Energy", UnitName: "KJ", Value: 1630},
			},
		}},
	}
	r := newResolver(t, &fakeOFF{}, fdcClient)

	item := gramItem("oats", 50, "g", models.LookupRequest{
		Provider: models.ProviderFoodDataCentral,
		Type:     models.RequestTypeText,
		Query:    "oats",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.NotNil(t, result.Items[0].NutrientsTotal)
	assert.InDelta(t, 1630.0/4.184/2, result.Items[0].NutrientsTotal.Calories, 1e-9)
}

func TestResolve_NoDataAsksForBrandOrBarcode(t *testing.T) {
	r := newResolver(t, &fakeOFF{}, &fakeFDC{})

	item := gramItem("mystery stew", 300, "g", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeText,
		Query:    "mystery stew",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.True(t, result.NeedsClarification)
	require.NotNil(t, result.ClarificationQuestion)
	assert.Equal(t, `I couldn't find nutrition data for "mystery stew". Can you provide a brand or barcode?`, *result.ClarificationQuestion)
	assert.InDelta(t, 0.2, result.ConfidencePenalty, 1e-9)
	require.Len(t, result.Items, 1)
	assert.Nil(t, result.Items[0].NutrientsTotal)
}

func TestResolve_UnconvertibleUnitAsksForGrams(t *testing.T) {
	r := newResolver(t, &fakeOFF{}, &fakeFDC{})

	item := gramItem("rice", 1, "cup")

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.True(t, result.NeedsClarification)
	require.NotNil(t, result.ClarificationQuestion)
	assert.Equal(t, `For "rice", how many grams did you eat?`, *result.ClarificationQuestion)
	assert.InDelta(t, 0.2, result.ConfidencePenalty, 1e-9)
}

// ==========================
// 2. Count Strategy
// ==========================

func TestResolve_CountUsesPerServingNutrients(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"protein bar": {{
			ProductName: "Protein Bar",
			Nutriments: map[string]interface{}{
				"energy-kcal_serving":   200.0,
				"proteins_serving":      20.0,
				"carbohydrates_serving": 15.0,
				"fat_serving":           7.0,
			},
		}},
	}}
	r := newResolver(t, off, nil)

	item := gramItem("protein bar", 2, "bars", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeText,
		Query:    "protein bar",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.False(t, result.NeedsClarification)
	assert.InDelta(t, 0.05, result.ConfidencePenalty, 1e-9)
	got := result.Items[0]
	require.NotNil(t, got.NutrientsTotal)
	assert.InDelta(t, 400.0, got.NutrientsTotal.Calories, 1e-9)
	assert.InDelta(t, 40.0, got.NutrientsTotal.ProteinG, 1e-9)
}

func TestResolve_CountUsesServingSizeGrams(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"biscotti": {{
			ProductName: "Biscotti",
			ServingSize: "30 g",
			Nutriments: map[string]interface{}{
				"energy-kcal_100g": 450.0,
				"fat_100g":         18.0,
			},
		}},
	}}
	r := newResolver(t, off, nil)

	item := gramItem("biscotti", 2, "pieces", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeText,
		Query:    "biscotti",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.False(t, result.NeedsClarification)
	assert.InDelta(t, 0.05, result.ConfidencePenalty, 1e-9)
	got := result.Items[0]
	require.NotNil(t, got.NutrientsTotal)
	// 2 pieces x 30 g at 450 kcal / 100 g.
	assert.InDelta(t, 270.0, got.NutrientsTotal.Calories, 1e-9)
	assert.InDelta(t, 10.8, got.NutrientsTotal.FatG, 1e-9)
}

func TestResolve_CountScoresFdcPortions(t *testing.T) {
	fdcClient := &fakeFDC{
		enabled: true,
		hits:    map[string][]fdc.Hit{"banana": {{FdcID: 1105314}}},
		foods: map[int]*fdc.Food{1105314: {
			FoodNutrients: []fdc.Nutrient{
				{NutrientName: "Energy", UnitName: "KCAL", Value: 89},
			},
			FoodPortions: []fdc.Portion{
				{GramWeight: 225, PortionDescription: "1 cup, mashed"},
				{GramWeight: 118, PortionDescription: "1 medium banana"},
				{GramWeight: 1000, PortionDescription: "bulk pack"},
			},
		}},
	}
	r := newResolver(t, &fakeOFF{}, fdcClient)

	item := gramItem("banana", 1, "piece", models.LookupRequest{
		Provider: models.ProviderFoodDataCentral,
		Type:     models.RequestTypeText,
		Query:    "banana",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	got := result.Items[0]
	require.NotNil(t, got.NutrientsTotal)
	// "1 medium banana" wins: unit-quantity +2, medium +1, name token +3.
	assert.InDelta(t, 89.0*1.18, got.NutrientsTotal.Calories, 1e-9)
	assert.InDelta(t, 0.05, result.ConfidencePenalty, 1e-9)
}

func TestResolve_CountDensityWithoutWeightAsksForServingGrams(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"cake": {{
			ProductName: "Cake",
			Nutriments: map[string]interface{}{
				"energy-kcal_100g": 380.0,
			},
		}},
	}}
	r := newResolver(t, off, &fakeFDC{})

	item := gramItem("cake", 1, "slice", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeText,
		Query:    "cake",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.True(t, result.NeedsClarification)
	require.NotNil(t, result.ClarificationQuestion)
	assert.Equal(t, `For "cake", how many grams is one slice?`, *result.ClarificationQuestion)
	assert.InDelta(t, 0.2, result.ConfidencePenalty, 1e-9)
	assert.Nil(t, result.Items[0].NutrientsTotal)
}

func TestResolve_MissingQtyDefaultsToOneServing(t *testing.T) {
	r := newResolver(t, &fakeOFF{}, &fakeFDC{})

	item := models.ExtractionItem{ItemName: "soup", SearchQuery: "soup"}

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.Len(t, result.Items, 1)
	assert.Equal(t, 1.0, result.Items[0].Quantity)
	assert.Equal(t, "serving", result.Items[0].Unit)
	assert.True(t, result.NeedsClarification)
}

// ==========================
// 3. Brand Preference
// ==========================

func TestResolve_BrandPrefersMatchingHit(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"greek yogurt": {
			{
				ProductName: "Generic Yogurt",
				Brands:      "Storebrand",
				Nutriments:  map[string]interface{}{"energy-kcal_100g": 80.0},
			},
			{
				ProductName: "Fage Total 0%",
				Brands:      "Fage",
				Nutriments:  map[string]interface{}{"energy-kcal_100g": 57.0},
			},
		},
	}}
	r := newResolver(t, off, nil)

	item := gramItem("greek yogurt", 100, "g", models.LookupRequest{
		Provider: models.ProviderOpenFoodFacts,
		Type:     models.RequestTypeText,
		Query:    "greek yogurt",
	})
	item.Brand = strPtr("Fage")

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	require.NotNil(t, result.Items[0].NutrientsTotal)
	assert.InDelta(t, 57.0, result.Items[0].NutrientsTotal.Calories, 1e-9)
}

// ==========================
// 4. Aggregation
// ==========================

func TestResolve_AggregatesOutcomes(t *testing.T) {
	off := &fakeOFF{searches: map[string][]openfoodfacts.Product{
		"banana": {{
			ProductName: "Banana",
			Nutriments:  map[string]interface{}{"energy-kcal_100g": 89.0},
		}},
	}}
	r := newResolver(t, off, &fakeFDC{})

	items := []models.ExtractionItem{
		gramItem("banana", 100, "g", models.LookupRequest{
			Provider: models.ProviderOpenFoodFacts,
			Type:     models.RequestTypeText,
			Query:    "banana",
		}),
		gramItem("mystery stew", 300, "g"),
	}

	result := r.Resolve(context.Background(), items)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "banana", result.Items[0].Name)
	assert.NotNil(t, result.Items[0].NutrientsTotal)
	assert.Nil(t, result.Items[1].NutrientsTotal)
	assert.True(t, result.NeedsClarification)
	require.NotNil(t, result.ClarificationQuestion)
	assert.Contains(t, *result.ClarificationQuestion, "mystery stew")
	assert.InDelta(t, 0.2, result.ConfidencePenalty, 1e-9)
}

func TestResolve_EmptyItems(t *testing.T) {
	r := newResolver(t, &fakeOFF{}, &fakeFDC{})

	result := r.Resolve(context.Background(), nil)

	assert.Empty(t, result.Items)
	assert.False(t, result.NeedsClarification)
}

func TestResolve_FdcDisabledSkipsProvider(t *testing.T) {
	fdcClient := &fakeFDC{enabled: false}
	r := newResolver(t, &fakeOFF{}, fdcClient)

	item := gramItem("oats", 50, "g", models.LookupRequest{
		Provider: models.ProviderFoodDataCentral,
		Type:     models.RequestTypeText,
		Query:    "oats",
	})

	result := r.Resolve(context.Background(), []models.ExtractionItem{item})

	assert.True(t, result.NeedsClarification)
	assert.Empty(t, fdcClient.searchCalls)
}
