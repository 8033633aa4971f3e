// Package scoring implements the pure lead-scoring engine: weighted score
// aggregation, category classification, text engagement and profile
// completeness. No state, no side effects; callers pass immutable catalog
// snapshots.
package scoring

import (
	"math"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
)

// Category is the discrete tier derived from the numeric lead score.
type Category string

const (
	CategoryA1 Category = "A1"
	CategoryB1 Category = "B1"
	CategoryC1 Category = "C1"
	CategoryD1 Category = "D1"
)

const multiChoicePointsPerSelection = 5

// Config is the slice of the catalog the engine needs.
type Config struct {
	Questions  map[string]catalog.Question
	Components map[catalog.Component]float64
	Thresholds catalog.Thresholds
}

// ConfigFromCatalog builds a scoring config snapshot from a loaded catalog.
func ConfigFromCatalog(cat *catalog.Catalog) Config {
	questions := make(map[string]catalog.Question, cat.TotalQuestions())
	for _, q := range cat.SessionQuestions(0) {
		questions[q.ID] = q
	}
	components := make(map[catalog.Component]float64, len(cat.Components))
	for component, weight := range cat.Components {
		components[component] = weight
	}
	return Config{
		Questions:  questions,
		Components: components,
		Thresholds: cat.Thresholds,
	}
}

// LeadScore aggregates a weighted score from a response set.
//
// Per answered question the raw score is: the matched option score for
// single choice (0 when unmatched), 5 per selection for multiple choice,
// and the supplied textEngagement for text questions. Raw scores accumulate
// into per-component totals through the question's scoring weights; the
// final score is the component totals folded through the global component
// weights, rounded to the nearest integer.
//
// Accumulation is keyed by component and folded in a fixed component order,
// so the result does not depend on response iteration order. Responses to
// unknown questions, or to questions without scoring weights, contribute
// nothing.
func LeadScore(responses answer.Map, cfg Config, textEngagement int) int {
	totals := make(map[catalog.Component]float64, len(catalog.KnownComponents))

	for questionID, value := range responses {
		if value.IsZero() {
			continue
		}
		question, ok := cfg.Questions[questionID]
		if !ok || len(question.ScoringWeight) == 0 {
			continue
		}

		raw := rawScore(question, value, textEngagement)
		for component, weight := range question.ScoringWeight {
			totals[component] += float64(raw) * weight
		}
	}

	var score float64
	for _, component := range catalog.KnownComponents {
		score += totals[component] * cfg.Components[component]
	}
	return int(math.Round(score))
}

func rawScore(question catalog.Question, value answer.Value, textEngagement int) int {
	switch question.Type {
	case catalog.SingleChoice:
		return question.OptionScore(value.Text())
	case catalog.MultipleChoice:
		return multiChoicePointsPerSelection * len(value.Selections())
	case catalog.Text, catalog.TextArea:
		return textEngagement
	default:
		return 0
	}
}

// LeadCategory classifies a score against ordered thresholds, highest first.
func LeadCategory(score int, t catalog.Thresholds) Category {
	switch {
	case score >= t.A1:
		return CategoryA1
	case score >= t.B1:
		return CategoryB1
	case score >= t.C1:
		return CategoryC1
	default:
		return CategoryD1
	}
}

// ProfileCompleteness is the percentage of catalog questions answered across
// both response maps. Key presence counts as answered even when the value is
// empty, matching the merge semantics of the profile manager.
func ProfileCompleteness(initial, followUp answer.Map, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}

	keys := make(map[string]struct{}, len(initial)+len(followUp))
	for key := range initial {
		keys[key] = struct{}{}
	}
	for key := range followUp {
		keys[key] = struct{}{}
	}

	return int(math.Round(float64(len(keys)) / float64(totalQuestions) * 100))
}
