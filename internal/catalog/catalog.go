// Package catalog holds the immutable question catalog and scoring
// configuration. The catalog is loaded once at startup and treated as a
// read-only snapshot by every other module; sessions receive copies and
// never mutate the shared definitions.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QuestionType enumerates the supported question widgets.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Text           QuestionType = "text"
	TextArea       QuestionType = "text_area"
)

// IsChoice reports whether the type requires a non-empty option list.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

// IsText reports whether the type carries free text scored for engagement.
func (t QuestionType) IsText() bool {
	return t == Text || t == TextArea
}

// Component is one weighted dimension of the lead score.
type Component string

const (
	ComponentUrgency    Component = "urgency"
	ComponentBudget     Component = "budget"
	ComponentFit        Component = "fit"
	ComponentEngagement Component = "engagement"
	ComponentDecision   Component = "decision"
)

// KnownComponents is the closed set of scoring components.
var KnownComponents = []Component{
	ComponentUrgency,
	ComponentBudget,
	ComponentFit,
	ComponentEngagement,
	ComponentDecision,
}

func isKnownComponent(c Component) bool {
	for _, known := range KnownComponents {
		if c == known {
			return true
		}
	}
	return false
}

// Option is one selectable answer for a choice question.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
	Score int    `yaml:"score" json:"score,omitempty"`
}

// Question is an immutable catalog entry.
type Question struct {
	ID            string                `yaml:"id" json:"id"`
	Type          QuestionType          `yaml:"type" json:"type"`
	Text          string                `yaml:"text" json:"text"`
	Required      bool                  `yaml:"required" json:"required"`
	Options       []Option              `yaml:"options" json:"options,omitempty"`
	AllowOther    bool                  `yaml:"allow_other" json:"allowOther,omitempty"`
	ScoringWeight map[Component]float64 `yaml:"scoring_weight" json:"scoringWeight,omitempty"`
	MaxLength     int                   `yaml:"max_length" json:"maxLength,omitempty"`
	Placeholder   string                `yaml:"placeholder" json:"placeholder,omitempty"`
	FollowUp      bool                  `yaml:"follow_up" json:"followUp,omitempty"`
}

// OptionScore returns the score of the option matching value, or 0 when the
// value matches no option or the option defines no score.
func (q Question) OptionScore(value string) int {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt.Score
		}
	}
	return 0
}

// Clone returns a deep copy so callers can hold question lists without
// aliasing the shared catalog.
func (q Question) Clone() Question {
	clone := q
	if q.Options != nil {
		clone.Options = append([]Option(nil), q.Options...)
	}
	if q.ScoringWeight != nil {
		clone.ScoringWeight = make(map[Component]float64, len(q.ScoringWeight))
		for component, weight := range q.ScoringWeight {
			clone.ScoringWeight[component] = weight
		}
	}
	return clone
}

// Thresholds are the ordered category cut-offs. A1 >= B1 >= C1 is enforced
// at load time so a misconfigured set cannot silently classify a higher
// score into a lower tier.
type Thresholds struct {
	A1 int `yaml:"a1" json:"a1"`
	B1 int `yaml:"b1" json:"b1"`
	C1 int `yaml:"c1" json:"c1"`
}

// Catalog is the loaded, validated question set plus scoring configuration.
type Catalog struct {
	Questions  []Question            `yaml:"questions"`
	Components map[Component]float64 `yaml:"components"`
	Thresholds Thresholds            `yaml:"thresholds"`

	byID map[string]int
}

// Load reads and validates a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	cat.byID = make(map[string]int, len(cat.Questions))
	for i, q := range cat.Questions {
		cat.byID[q.ID] = i
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("catalog: no questions defined")
	}
	seen := make(map[string]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("catalog: question with empty id")
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("catalog: duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}

		switch q.Type {
		case SingleChoice, MultipleChoice, Text, TextArea:
		default:
			return fmt.Errorf("catalog: question %q has unknown type %q", q.ID, q.Type)
		}
		if q.Type.IsChoice() && len(q.Options) == 0 {
			return fmt.Errorf("catalog: choice question %q has no options", q.ID)
		}
		for component := range q.ScoringWeight {
			if !isKnownComponent(component) {
				return fmt.Errorf("catalog: question %q references unknown component %q", q.ID, component)
			}
		}
	}
	for component := range c.Components {
		if !isKnownComponent(component) {
			return fmt.Errorf("catalog: unknown global component %q", component)
		}
	}
	if c.Thresholds.A1 < c.Thresholds.B1 || c.Thresholds.B1 < c.Thresholds.C1 {
		return fmt.Errorf("catalog: thresholds must satisfy a1 >= b1 >= c1, got a1=%d b1=%d c1=%d",
			c.Thresholds.A1, c.Thresholds.B1, c.Thresholds.C1)
	}
	return nil
}

// TotalQuestions is the denominator for profile completeness.
func (c *Catalog) TotalQuestions() int {
	return len(c.Questions)
}

// Question returns a copy of the question with the given id.
func (c *Catalog) Question(id string) (Question, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.Questions[idx].Clone(), true
}

// SessionQuestions returns up to max questions, in catalog order, as deep
// copies safe for a flow session to hold.
func (c *Catalog) SessionQuestions(max int) []Question {
	n := len(c.Questions)
	if max > 0 && max < n {
		n = max
	}
	result := make([]Question, n)
	for i := 0; i < n; i++ {
		result[i] = c.Questions[i].Clone()
	}
	return result
}

// EngagementQuestionID returns the id of the free-text question whose answer
// feeds the text engagement score: the first text question weighted on the
// engagement component. Empty when the catalog defines none.
func (c *Catalog) EngagementQuestionID() string {
	for _, q := range c.Questions {
		if !q.Type.IsText() {
			continue
		}
		if _, ok := q.ScoringWeight[ComponentEngagement]; ok {
			return q.ID
		}
	}
	return ""
}

// FollowUpCandidates returns copies of the questions flagged for follow-up
// sessions, in catalog order.
func (c *Catalog) FollowUpCandidates() []Question {
	var result []Question
	for _, q := range c.Questions {
		if q.FollowUp {
			result = append(result, q.Clone())
		}
	}
	return result
}
