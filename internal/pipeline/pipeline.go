// Package pipeline wires the extraction and nutrition stages into the
// parse operation: fast-path or language-model extraction, normalization,
// meal inference, and nutrient resolution.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodlog/internal/common/logger"
	"foodlog/internal/common/observability"
	"foodlog/internal/extract/fastpath"
	"foodlog/internal/extract/llm"
	"foodlog/internal/extract/mealinfer"
	"foodlog/internal/extract/normalize"
	"foodlog/internal/models"
	"foodlog/internal/nutrition/resolver"
)

const fallbackClarification = "Please provide the amount in grams or product details (brand/barcode)."

// LanguageModelExtractor is the slow extraction path.
type LanguageModelExtractor interface {
	Extract(ctx context.Context, in llm.Input) (*models.Extraction, error)
}

// NutritionResolver turns extracted items into nutrient totals.
type NutritionResolver interface {
	Resolve(ctx context.Context, items []models.ExtractionItem) resolver.Result
}

// Config holds request defaults applied when the caller omits them.
type Config struct {
	Timezone    string
	CountryISO2 string
}

type Pipeline struct {
	llm       LanguageModelExtractor
	nutrition NutritionResolver
	config    Config
	obs       *observability.Observability
	logger    logger.Logger
}

func New(lm LanguageModelExtractor, nutrition NutritionResolver, cfg Config, obs *observability.Observability, log logger.Logger) *Pipeline {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.CountryISO2 == "" {
		cfg.CountryISO2 = "US"
	}
	return &Pipeline{llm: lm, nutrition: nutrition, config: cfg, obs: obs, logger: log}
}

// ExtractSmart runs the fast path first and falls back to the language
// model. Either result goes through the normalizer before it is returned.
// The boolean reports whether the fast path produced the extraction.
func (p *Pipeline) ExtractSmart(ctx context.Context, isoDatetime, timezone, countryISO2, userText string) (*models.Extraction, bool, error) {
	if fast := fastpath.Extract(fastpath.Input{
		ISODatetime: isoDatetime,
		Timezone:    timezone,
		UserText:    userText,
	}); fast != nil {
		return normalize.Normalize(fast, userText, isoDatetime), true, nil
	}

	raw, err := p.llm.Extract(ctx, llm.Input{
		ISODatetime: isoDatetime,
		Timezone:    timezone,
		CountryISO2: countryISO2,
		UserText:    userText,
	})
	if err != nil {
		return nil, false, err
	}
	return normalize.Normalize(raw, userText, isoDatetime), false, nil
}

// ParseRequest is one parse call. Empty fields fall back to the pipeline
// defaults, and CurrentDateTime falls back to the wall clock.
type ParseRequest struct {
	Text            string
	CurrentDateTime string
	Timezone        string
	CountryISO2     string
}

// Parse runs the full pipeline for one utterance. A request that needs
// clarification comes back with empty items, the question to ask, and a
// reduced confidence score.
func (p *Pipeline) Parse(ctx context.Context, req ParseRequest) (*models.ParseResult, error) {
	requestID := uuid.NewString()
	start := time.Now()

	baseTime := time.Now().UTC()
	if req.CurrentDateTime != "" {
		if t, err := time.Parse(time.RFC3339, req.CurrentDateTime); err == nil {
			baseTime = t
		}
	}
	baseISO := baseTime.UTC().Format(time.RFC3339)

	timezone := req.Timezone
	if timezone == "" {
		timezone = p.config.Timezone
	}
	country := strings.ToUpper(req.CountryISO2)
	if country == "" {
		country = strings.ToUpper(p.config.CountryISO2)
	}

	log := p.logger.WithFields(map[string]interface{}{"request_id": requestID})

	extraction, usedFastPath, err := p.ExtractSmart(ctx, baseISO, timezone, country, req.Text)
	if err != nil {
		log.Error("extraction failed", map[string]interface{}{"error": err.Error()})
		p.recordParse(ctx, usedFastPath, "error", time.Since(start))
		return nil, err
	}

	loggedAt := parseLocalDatetime(extraction.DatetimeLocal, timezone, baseTime)
	meal := mealinfer.Infer(req.Text, loggedAt, timezone)

	nutrition := p.nutrition.Resolve(ctx, extraction.Items)

	needsClarification := extraction.NeedsClarification || nutrition.NeedsClarification
	question := extraction.ClarificationQuestion
	if question == nil {
		question = nutrition.ClarificationQuestion
	}

	confidence := extraction.Confidence - nutrition.ConfidencePenalty
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := &models.ParseResult{
		Items:           nutrition.Items,
		LoggedAtISO:     loggedAt.UTC().Format(time.RFC3339),
		MealLabel:       meal,
		ConfidenceScore: confidence,
	}
	if needsClarification {
		result.Items = []models.FoodItem{}
		result.NeedsClarification = true
		if question == nil {
			q := fallbackClarification
			question = &q
		}
		result.ClarificationQuestion = question
	}

	log.Info("parse completed", map[string]interface{}{
		"used_fast_path":      usedFastPath,
		"item_count":          len(result.Items),
		"needs_clarification": result.NeedsClarification,
		"confidence":          result.ConfidenceScore,
		"duration_ms":         time.Since(start).Milliseconds(),
	})
	p.recordParse(ctx, usedFastPath, "ok", time.Since(start))
	return result, nil
}

func (p *Pipeline) recordParse(ctx context.Context, usedFastPath bool, status string, duration time.Duration) {
	if p.obs == nil {
		return
	}
	path := "llm"
	if usedFastPath {
		path = "fastpath"
	}
	p.obs.RecordParse(ctx, path, status)
	p.obs.RecordParseDuration(ctx, duration, status)
}

// parseLocalDatetime interprets the extraction's local timestamp in the
// request timezone. The model emits minute precision without an offset, but
// full RFC3339 is accepted too.
func parseLocalDatetime(s, timezone string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return fallback
}
