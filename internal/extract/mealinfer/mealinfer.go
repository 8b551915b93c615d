// Package mealinfer assigns a meal label to an utterance from explicit meal
// words or, failing that, from the local wall-clock time.
package mealinfer

import (
	"regexp"
	"time"

	"foodlog/internal/models"
)

var mealKeywords = []struct {
	meal    models.Meal
	pattern *regexp.Regexp
}{
	{models.MealBreakfast, regexp.MustCompile(`(?i)\bbreakfast\b`)},
	{models.MealLunch, regexp.MustCompile(`(?i)\blunch\b`)},
	{models.MealDinner, regexp.MustCompile(`(?i)\bdinner\b`)},
	{models.MealSnack, regexp.MustCompile(`(?i)\bsnack\b`)},
}

// MealFromKeyword returns the meal named in the text, or "" when none is.
func MealFromKeyword(text string) models.Meal {
	for _, kw := range mealKeywords {
		if kw.pattern.MatchString(text) {
			return kw.meal
		}
	}
	return ""
}

// MealFromLocalTime maps a wall-clock time to a meal slot.
func MealFromLocalTime(t time.Time) models.Meal {
	hhmm := t.Hour()*60 + t.Minute()
	switch {
	case hhmm >= 5*60 && hhmm <= 10*60+59:
		return models.MealBreakfast
	case hhmm >= 11*60 && hhmm <= 15*60+59:
		return models.MealLunch
	case hhmm >= 16*60 && hhmm <= 21*60+59:
		return models.MealDinner
	default:
		return models.MealSnack
	}
}

// MealFromLocalTimeInZone converts t to the named zone before mapping it to
// a meal slot. When the zone cannot be loaded the fallback keeps t in its
// own location, i.e. the offset it was parsed with (UTC for RFC3339 request
// timestamps), not the machine-local zone.
func MealFromLocalTimeInZone(t time.Time, timezone string) models.Meal {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return MealFromLocalTime(t)
	}
	return MealFromLocalTime(t.In(loc))
}

// Infer resolves the meal label for an utterance. A keyword match always
// wins over the time-based rule.
func Infer(text string, loggedAt time.Time, timezone string) models.Meal {
	if meal := MealFromKeyword(text); meal != "" {
		return meal
	}
	if timezone != "" {
		return MealFromLocalTimeInZone(loggedAt, timezone)
	}
	return MealFromLocalTime(loggedAt)
}
