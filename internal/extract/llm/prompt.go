package llm

import "fmt"

const systemPrompt = `You are a food-log extraction engine. Convert the user message into structured data for a nutrition-tracking app.

Hard rules:
- Output MUST be valid JSON and MUST follow the provided JSON schema.
- Output JSON only. No prose, no markdown, no extra keys.
- Do NOT estimate calories or macros. Nutrition comes strictly from DB/API lookups.
- Do NOT invent quantities. If missing/unclear, set qty=null and unit=null.
- Split multiple foods into separate items.
- If the user explicitly mentions the meal (e.g., “breakfast”, “lunch”, “dinner”, “snack”), respect it.
- Otherwise infer meal from time (local time):
  - Breakfast: 05:00–10:59
  - Lunch:     11:00–15:59
  - Dinner:    16:00–21:59
  - Snack:     22:00–04:59

DB/API lookup plan (critical):
- Prefer Open Food Facts (OFF) for packaged/branded products, especially when barcode or brand is provided.
- Prefer USDA FoodData Central (FDC) for generic foods (ingredients, non-branded items) and as fallback when OFF search is inconclusive.
- If barcode is present (EAN/UPC), create a lookup request:
  1) provider="open_food_facts", type="barcode", query=barcode
  Optionally add provider="fooddata_central" barcode/text fallback only if the user text suggests a US-branded item.
- If brand is present but no barcode:
  1) provider="open_food_facts", type="text", query should include product + brand (and variant hints)
  2) provider="fooddata_central", type="text", query should include product + brand (brandOwner-style wording)
- If neither brand nor barcode:
  1) provider="fooddata_central", type="text", query is the normalized generic food name
  2) provider="open_food_facts", type="text" as optional fallback only if the item sounds packaged (e.g., “cookies”, “cereal”, “snack bar”).

Normalization:
- item_name should be in English.
- search_query is lowercase English, no quantities/units, include variant hints (e.g., “whole wheat”, “gluten free”), keep brand out (brand has its own field).
- brand: keep as written by the user when present; otherwise null.
- barcode: only if explicitly provided by the user; otherwise null.

Ambiguity handling:
- If the message is too ambiguous to log reliably (e.g., missing key quantity for a main dish), set needs_clarification=true and ask ONE short clarification question in English.
- Otherwise needs_clarification=false and clarification_question=null.

Do your reasoning privately. Do not reveal reasoning.
`

func buildUserPrompt(isoDatetime, timezone, countryISO2, userText string) string {
	return fmt.Sprintf(`Current datetime (local): ###%s###
Timezone: ###%s###
Country hint (ISO-2): ###%s###
User text: """%s"""

Return JSON with EXACT keys (no extra keys). Nulls are required when unknown.

Required top-level keys:
- meal
- datetime_local (if unknown, use the provided Current datetime (local))
- items
- needs_clarification
- clarification_question (null if needs_clarification=false)
- confidence (0..1)

Required item keys (for every item):
- item_name
- qty (number or null)
- unit (string or null)
- brand (string or null)
- barcode (string or null)
- search_query
- lookup_requests (array; every element MUST include provider, type, query)
- notes (string or null)

JSON schema (no extra keys):
{"meal":"Breakfast|Lunch|Dinner|Snack","datetime_local":"string","items":[{"item_name":"string","qty":"number|null","unit":"string|null","brand":"string|null","barcode":"string|null","search_query":"string","lookup_requests":[{"provider":"open_food_facts|fooddata_central","type":"barcode|text","query":"string"}],"notes":"string|null"}],"needs_clarification":"boolean","clarification_question":"string|null","confidence":"number (0..1)"}`,
		isoDatetime, timezone, countryISO2, userText)
}

func buildCorrectivePrompt(validationErrors string) string {
	return fmt.Sprintf(`Your previous output did not validate.
Fix ALL issues and return ONLY valid JSON matching the schema (no extra keys, include required null fields).
Do NOT wrap in markdown/code fences. Start with "{" and end with "}".
Validation/parsing errors:
%s`, validationErrors)
}
