// Package models defines the shared data structures of the food-log pipeline.
package models

// Meal is the meal slot a log line belongs to.
type Meal string

const (
	MealBreakfast Meal = "Breakfast"
	MealLunch     Meal = "Lunch"
	MealDinner    Meal = "Dinner"
	MealSnack     Meal = "Snack"
)

// Provider identifies a nutrition data source.
type Provider string

const (
	ProviderOpenFoodFacts   Provider = "open_food_facts"
	ProviderFoodDataCentral Provider = "fooddata_central"
)

// RequestType is the kind of provider lookup.
type RequestType string

const (
	RequestTypeBarcode RequestType = "barcode"
	RequestTypeText    RequestType = "text"
)

// LookupRequest is one step of an item's provider lookup plan.
type LookupRequest struct {
	Provider Provider    `json:"provider"`
	Type     RequestType `json:"type"`
	Query    string      `json:"query"`
}

// ExtractionItem is a single food mention pulled from the utterance.
// Qty, Unit, Brand, Barcode and Notes are nil when the utterance does not
// state them; they are never invented.
type ExtractionItem struct {
	ItemName       string          `json:"item_name"`
	Qty            *float64        `json:"qty"`
	Unit           *string         `json:"unit"`
	Brand          *string         `json:"brand"`
	Barcode        *string         `json:"barcode"`
	SearchQuery    string          `json:"search_query"`
	LookupRequests []LookupRequest `json:"lookup_requests"`
	Notes          *string         `json:"notes"`
}

// Extraction is the structured form of a food-log utterance.
type Extraction struct {
	Meal                  Meal             `json:"meal"`
	DatetimeLocal         string           `json:"datetime_local"`
	Items                 []ExtractionItem `json:"items"`
	NeedsClarification    bool             `json:"needs_clarification"`
	ClarificationQuestion *string          `json:"clarification_question"`
	Confidence            float64          `json:"confidence"`
}
