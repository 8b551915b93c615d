package llm

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "foodlog/internal/common/errors"
)

// extractionSchemaJSON is the strict output contract sent to the model as a
// schema-constrained format and enforced again on the response.
const extractionSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": [
    "meal",
    "datetime_local",
    "items",
    "needs_clarification",
    "clarification_question",
    "confidence"
  ],
  "properties": {
    "meal": { "type": "string", "enum": ["Breakfast", "Lunch", "Dinner", "Snack"] },
    "datetime_local": { "type": "string" },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": [
          "item_name",
          "qty",
          "unit",
          "brand",
          "barcode",
          "search_query",
          "lookup_requests",
          "notes"
        ],
        "properties": {
          "item_name": { "type": "string" },
          "qty": { "type": ["number", "null"] },
          "unit": { "type": ["string", "null"] },
          "brand": { "type": ["string", "null"] },
          "barcode": { "type": ["string", "null"] },
          "search_query": { "type": "string" },
          "lookup_requests": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["provider", "type", "query"],
              "properties": {
                "provider": { "type": "string", "enum": ["open_food_facts", "fooddata_central"] },
                "type": { "type": "string", "enum": ["barcode", "text"] },
                "query": { "type": "string" }
              }
            }
          },
          "notes": { "type": ["string", "null"] }
        }
      }
    },
    "needs_clarification": { "type": "boolean" },
    "clarification_question": { "type": ["string", "null"] },
    "confidence": { "type": "number", "minimum": 0, "maximum": 1 }
  }
}`

var extractionSchema = gojsonschema.NewStringLoader(extractionSchemaJSON)

// validateExtractionJSON checks a JSON document against the output schema
// and returns an error listing up to 12 violations, one per line.
func validateExtractionJSON(doc string) error {
	result, err := gojsonschema.Validate(extractionSchema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := result.Errors()
	if len(issues) > 12 {
		issues = issues[:12]
	}
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		field := issue.Field()
		if field == "" {
			field = "(root)"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", field, issue.Description()))
	}
	return stderrors.NewExtractionInvalidError(strings.Join(lines, "\n"))
}
