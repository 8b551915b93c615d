package models

// NutrientsPer100g holds nutrient density per 100 grams of food.
type NutrientsPer100g struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// NutrientTotals holds absolute nutrient amounts for a logged quantity.
type NutrientTotals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// FoodItem is one resolved food entry ready for display.
type FoodItem struct {
	Name           string          `json:"name"`
	Quantity       float64         `json:"quantity"`
	Unit           string          `json:"unit"`
	NutrientsTotal *NutrientTotals `json:"nutrients_total,omitempty"`
}

// ParseResult is the full outcome of parsing a food-log utterance.
type ParseResult struct {
	Items                 []FoodItem `json:"items"`
	LoggedAtISO           string     `json:"logged_at_iso"`
	MealLabel             Meal       `json:"meal_label"`
	NeedsClarification    bool       `json:"needs_clarification"`
	ClarificationQuestion *string    `json:"clarification_question,omitempty"`
	ConfidenceScore       float64    `json:"confidence_score"`
}
