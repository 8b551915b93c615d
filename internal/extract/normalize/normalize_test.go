package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/internal/models"
)

const isoNoon = "2025-06-15T12:00:00Z"

func strPtr(s string) *string   { return &s }
func numPtr(n float64) *float64 { return &n }

func item(name string, qty *float64, unit *string) models.ExtractionItem {
	return models.ExtractionItem{
		ItemName:       name,
		Qty:            qty,
		Unit:           unit,
		SearchQuery:    name,
		LookupRequests: []models.LookupRequest{},
	}
}

func extraction(items ...models.ExtractionItem) *models.Extraction {
	return &models.Extraction{
		Meal:          models.MealLunch,
		DatetimeLocal: isoNoon,
		Items:         items,
		Confidence:    0.9,
	}
}

// ==========================
// 1. Search Query Rebuild
// ==========================

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		itemName string
		brand    *string
		want     string
	}{
		{"drops quantity", "200 greek yogurt", nil, "greek yogurt"},
		{"keeps percentage variant", "greek yogurt 0%", nil, "greek yogurt 0%"},
		{"drops unit words", "rice 150 g cooked", nil, "rice cooked"},
		{"drops meal words", "breakfast oats", nil, "oats"},
		{"drops brand", "yogurt Fage", strPtr("Fage"), "yogurt"},
		{"drops punctuation", "pasta, al dente;", nil, "pasta al dente"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery("fallback", tt.itemName, tt.brand)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSearchQuery_FallsBackWhenEmpty(t *testing.T) {
	// Nothing survives stripping, fall back to the lowercased base.
	got := buildSearchQuery("fallback", "200 g", nil)
	assert.Equal(t, "200 g", got)
}

// ==========================
// 2. Lookup Plan Rebuild
// ==========================

func TestNormalize_BarcodePlan(t *testing.T) {
	it := item("Prodotto", nil, nil)
	it.Barcode = strPtr("8000500310427")

	out := Normalize(extraction(it), "barcode 8000500310427", isoNoon)

	require.Len(t, out.Items, 1)
	reqs := out.Items[0].LookupRequests
	require.Len(t, reqs, 1)
	assert.Equal(t, models.ProviderOpenFoodFacts, reqs[0].Provider)
	assert.Equal(t, models.RequestTypeBarcode, reqs[0].Type)
	assert.Equal(t, "8000500310427", reqs[0].Query)
}

func TestNormalize_BarcodeDetectedFromUserText(t *testing.T) {
	out := Normalize(extraction(item("Prodotto", nil, nil)), "barcode 8000500310427", isoNoon)

	require.Len(t, out.Items, 1)
	require.NotNil(t, out.Items[0].Barcode)
	assert.Equal(t, "8000500310427", *out.Items[0].Barcode)
}

func TestNormalize_BarcodeNotDetectedForMultipleItems(t *testing.T) {
	out := Normalize(
		extraction(item("yogurt", numPtr(200), strPtr("g")), item("banana", numPtr(1), nil)),
		"200 g yogurt and 1 banana 8000500310427",
		isoNoon,
	)

	for _, it := range out.Items {
		assert.Nil(t, it.Barcode)
	}
}

func TestNormalize_BrandPlan(t *testing.T) {
	it := item("greek yogurt", numPtr(200), strPtr("g"))
	it.Brand = strPtr("Fage")

	out := Normalize(extraction(it), "200 g Fage greek yogurt", isoNoon)

	require.Len(t, out.Items, 1)
	reqs := out.Items[0].LookupRequests
	require.Len(t, reqs, 2)
	assert.Equal(t, models.ProviderOpenFoodFacts, reqs[0].Provider)
	assert.Equal(t, models.RequestTypeText, reqs[0].Type)
	assert.Equal(t, "greek yogurt Fage", reqs[0].Query)
	assert.Equal(t, models.ProviderFoodDataCentral, reqs[1].Provider)
	assert.Equal(t, "greek yogurt Fage", reqs[1].Query)
}

func TestNormalize_GenericPlan(t *testing.T) {
	out := Normalize(extraction(item("banana", numPtr(1), strPtr("piece"))), "1 banana", isoNoon)

	require.Len(t, out.Items, 1)
	reqs := out.Items[0].LookupRequests
	require.Len(t, reqs, 1)
	assert.Equal(t, models.ProviderFoodDataCentral, reqs[0].Provider)
	assert.Equal(t, models.RequestTypeText, reqs[0].Type)
}

func TestNormalize_PackagedItemAddsOFFFallback(t *testing.T) {
	out := Normalize(extraction(item("biscotti", numPtr(50), strPtr("g"))), "50 g biscotti", isoNoon)

	require.Len(t, out.Items, 1)
	reqs := out.Items[0].LookupRequests
	require.Len(t, reqs, 2)
	assert.Equal(t, models.ProviderFoodDataCentral, reqs[0].Provider)
	assert.Equal(t, models.ProviderOpenFoodFacts, reqs[1].Provider)
	assert.Equal(t, models.RequestTypeText, reqs[1].Type)
}

// ==========================
// 3. Single-Item Re-Split
// ==========================

func TestNormalize_SplitsConjoinedQuantifiedItems(t *testing.T) {
	out := Normalize(
		extraction(item("greek yogurt and banana", numPtr(200), strPtr("g"))),
		"200 g greek yogurt and 1 banana",
		isoNoon,
	)

	require.Len(t, out.Items, 2)
	assert.Equal(t, "greek yogurt", out.Items[0].ItemName)
	require.NotNil(t, out.Items[0].Qty)
	assert.Equal(t, 200.0, *out.Items[0].Qty)
	require.NotNil(t, out.Items[0].Unit)
	assert.Equal(t, "g", *out.Items[0].Unit)

	assert.Equal(t, "banana", out.Items[1].ItemName)
	require.NotNil(t, out.Items[1].Qty)
	assert.Equal(t, 1.0, *out.Items[1].Qty)
	assert.Nil(t, out.Items[1].Unit)
}

func TestNormalize_NoSplitWithoutLeadingQuantity(t *testing.T) {
	out := Normalize(
		extraction(item("yogurt and banana", nil, nil)),
		"yogurt and 1 banana",
		isoNoon,
	)
	assert.Len(t, out.Items, 1)
}

func TestNormalize_NoSplitForMultiItemExtractions(t *testing.T) {
	out := Normalize(
		extraction(item("yogurt", numPtr(200), strPtr("g")), item("banana", numPtr(1), strPtr("piece"))),
		"200 g yogurt and 1 banana",
		isoNoon,
	)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, "yogurt", out.Items[0].ItemName)
}

// ==========================
// 4. Deduplication
// ==========================

func TestNormalize_DropsExactDuplicates(t *testing.T) {
	out := Normalize(
		extraction(
			item("rice", numPtr(150), strPtr("g")),
			item("rice", numPtr(150), strPtr("g")),
			item("chicken", numPtr(100), strPtr("g")),
		),
		"150 g rice, 150 g rice, 100 g chicken",
		isoNoon,
	)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "rice", out.Items[0].ItemName)
	assert.Equal(t, "chicken", out.Items[1].ItemName)
}

func TestNormalize_KeepsNearDuplicates(t *testing.T) {
	out := Normalize(
		extraction(
			item("rice", numPtr(150), strPtr("g")),
			item("rice", numPtr(100), strPtr("g")),
		),
		"150 g rice, 100 g rice",
		isoNoon,
	)
	assert.Len(t, out.Items, 2)
}

// ==========================
// 5. Clarification and Confidence
// ==========================

func TestNormalize_MissingQuantityTriggersClarification(t *testing.T) {
	out := Normalize(
		extraction(item("yogurt", numPtr(200), strPtr("g")), item("banana", numPtr(1), nil)),
		"200 g yogurt and 1 banana",
		isoNoon,
	)

	assert.True(t, out.NeedsClarification)
	require.NotNil(t, out.ClarificationQuestion)
	assert.Equal(t, `For "banana", how many grams?`, *out.ClarificationQuestion)
	assert.InDelta(t, 0.69, out.Confidence, 1e-9, "confidence capped when clarifying")
}

func TestNormalize_ExplicitQuestionPreserved(t *testing.T) {
	ext := extraction(item("soup", nil, nil))
	ext.NeedsClarification = true
	ext.ClarificationQuestion = strPtr("How much soup did you have?")

	out := Normalize(ext, "soup", isoNoon)

	assert.True(t, out.NeedsClarification)
	require.NotNil(t, out.ClarificationQuestion)
	assert.Equal(t, "How much soup did you have?", *out.ClarificationQuestion)
}

func TestNormalize_CompleteItemsDoNotClarify(t *testing.T) {
	out := Normalize(extraction(item("rice", numPtr(150), strPtr("g"))), "150 g rice", isoNoon)

	assert.False(t, out.NeedsClarification)
	assert.Nil(t, out.ClarificationQuestion)
	assert.InDelta(t, 0.9, out.Confidence, 1e-9)
}

func TestNormalize_ConfidenceBelowCapUntouched(t *testing.T) {
	ext := extraction(item("banana", numPtr(1), nil))
	ext.Confidence = 0.5

	out := Normalize(ext, "1 banana", isoNoon)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)
}

// ==========================
// 6. Idempotency and Datetime
// ==========================

func TestNormalize_Idempotent(t *testing.T) {
	ext := extraction(
		item("greek yogurt 0%", numPtr(200), strPtr("g")),
		item("banana", numPtr(1), nil),
	)

	once := Normalize(ext, "200 g greek yogurt 0%, 1 banana", isoNoon)
	twice := Normalize(once, "200 g greek yogurt 0%, 1 banana", isoNoon)
	assert.Equal(t, once, twice)
}

func TestNormalize_EmptyDatetimeFallsBackToRequest(t *testing.T) {
	ext := extraction(item("rice", numPtr(150), strPtr("g")))
	ext.DatetimeLocal = "  "

	out := Normalize(ext, "150 g rice", isoNoon)
	assert.Equal(t, isoNoon, out.DatetimeLocal)
}
