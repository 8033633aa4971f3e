package catalog

import (
	"strings"
	"testing"
)

const validYAML = `
questions:
  - id: sector
    type: single_choice
    text: "Sector?"
    required: true
    options:
      - { value: health, label: Health, score: 30 }
      - { value: retail, label: Retail, score: 10 }
    scoring_weight: { fit: 1.0 }
  - id: details
    type: text_area
    text: "Details?"
    scoring_weight: { engagement: 1.0 }
  - id: budget_range
    type: single_choice
    text: "Budget?"
    follow_up: true
    options:
      - { value: low, label: Low, score: 5 }
components:
  fit: 1.0
  engagement: 0.5
thresholds: { a1: 80, b1: 60, c1: 40 }
`

func mustParse(t *testing.T, yaml string) *Catalog {
	t.Helper()
	cat, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cat
}

func TestParse_Valid(t *testing.T) {
	cat := mustParse(t, validYAML)

	if cat.TotalQuestions() != 3 {
		t.Fatalf("expected 3 questions, got %d", cat.TotalQuestions())
	}
	q, ok := cat.Question("sector")
	if !ok {
		t.Fatal("sector not indexed")
	}
	if q.OptionScore("health") != 30 {
		t.Fatalf("option score: got %d", q.OptionScore("health"))
	}
	if q.OptionScore("missing") != 0 {
		t.Fatal("unmatched option must score 0")
	}
}

func TestParse_RejectsDuplicateIDs(t *testing.T) {
	yaml := strings.Replace(validYAML, "id: details", "id: sector", 1)
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestParse_RejectsChoiceWithoutOptions(t *testing.T) {
	yaml := `
questions:
  - id: broken
    type: single_choice
    text: "No options"
thresholds: { a1: 80, b1: 60, c1: 40 }
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected missing options error")
	}
}

func TestParse_RejectsUnknownType(t *testing.T) {
	yaml := `
questions:
  - id: broken
    type: slider
    text: "Unknown widget"
thresholds: { a1: 80, b1: 60, c1: 40 }
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestParse_RejectsUnknownComponent(t *testing.T) {
	yaml := strings.Replace(validYAML, "{ fit: 1.0 }", "{ charisma: 1.0 }", 1)
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected unknown component error")
	}
}

func TestParse_RejectsUnorderedThresholds(t *testing.T) {
	yaml := strings.Replace(validYAML, "{ a1: 80, b1: 60, c1: 40 }", "{ a1: 50, b1: 60, c1: 40 }", 1)
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected threshold ordering error")
	}
}

func TestSessionQuestions_ReturnsDeepCopies(t *testing.T) {
	cat := mustParse(t, validYAML)

	questions := cat.SessionQuestions(0)
	questions[0].Options[0].Score = 999
	questions[0].ScoringWeight[ComponentFit] = 42

	original, _ := cat.Question("sector")
	if original.Options[0].Score != 30 {
		t.Fatal("mutating a session copy changed the catalog options")
	}
	if original.ScoringWeight[ComponentFit] != 1.0 {
		t.Fatal("mutating a session copy changed the catalog weights")
	}
}

func TestSessionQuestions_CapsAtMax(t *testing.T) {
	cat := mustParse(t, validYAML)

	if got := len(cat.SessionQuestions(2)); got != 2 {
		t.Fatalf("expected 2 questions, got %d", got)
	}
	if got := len(cat.SessionQuestions(0)); got != 3 {
		t.Fatalf("expected all questions for max 0, got %d", got)
	}
}

func TestFollowUpCandidates(t *testing.T) {
	cat := mustParse(t, validYAML)

	candidates := cat.FollowUpCandidates()
	if len(candidates) != 1 || candidates[0].ID != "budget_range" {
		t.Fatalf("expected budget_range only, got %+v", candidates)
	}
}

func TestEngagementQuestionID(t *testing.T) {
	cat := mustParse(t, validYAML)

	if got := cat.EngagementQuestionID(); got != "details" {
		t.Fatalf("expected details, got %q", got)
	}
}

func TestLoad_ShippedCatalog(t *testing.T) {
	cat, err := Load("../../configs/questions.yaml")
	if err != nil {
		t.Fatalf("shipped catalog is invalid: %v", err)
	}
	if cat.EngagementQuestionID() == "" {
		t.Fatal("shipped catalog defines no engagement question")
	}
	if len(cat.FollowUpCandidates()) == 0 {
		t.Fatal("shipped catalog defines no follow-up candidates")
	}
}
