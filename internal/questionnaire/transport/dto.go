// Package transport defines the wire-level request and response shapes for
// the questionnaire endpoints.
package transport

import (
	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
)

// StartSessionRequest opens a new session, or resumes the draft one when a
// snapshot exists for the lead and session type. StartFresh discards any
// existing draft instead of resuming it.
type StartSessionRequest struct {
	LeadID      string   `json:"leadId" validate:"required,uuid"`
	SessionType string   `json:"sessionType" validate:"required,oneof=initial follow_up_qualified technical_assessment compliance_deep_dive"`
	Channel     string   `json:"channel" validate:"omitempty,max=50"`
	QuestionIDs []string `json:"questionIds" validate:"omitempty,max=20,dive,max=100"`
	StartFresh  bool     `json:"startFresh"`
}

// AnswerRequest records an answer for the current question. The answer field
// accepts a string for single choice, an array for multiple choice and a
// {"text": ...} object for free text. OtherText carries the companion text
// for an "other" selection.
type AnswerRequest struct {
	Answer    *answer.Value `json:"answer"`
	OtherText *string       `json:"otherText" validate:"omitempty,max=500"`
}

// QuestionView is the client-facing question shape.
type QuestionView struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Required    bool         `json:"required"`
	AllowOther  bool         `json:"allowOther,omitempty"`
	MaxLength   int          `json:"maxLength,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
	Options     []OptionView `json:"options,omitempty"`
}

// OptionView is a selectable choice without its scoring internals.
type OptionView struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SessionStateResponse describes where the session stands after an action.
type SessionStateResponse struct {
	SessionID       string            `json:"sessionId"`
	LeadID          string            `json:"leadId"`
	SessionType     string            `json:"sessionType"`
	Status          string            `json:"status"`
	QuestionIndex   int               `json:"questionIndex"`
	TotalQuestions  int               `json:"totalQuestions"`
	CurrentQuestion *QuestionView     `json:"currentQuestion,omitempty"`
	Responses       answer.Map        `json:"responses"`
	OtherText       map[string]string `json:"otherText,omitempty"`
	Resumed         bool              `json:"resumed,omitempty"`
	Completion      *CompletionView   `json:"completion,omitempty"`
}

// CompletionView summarizes a finished session for the client.
type CompletionView struct {
	LeadScore         int     `json:"leadScore"`
	LeadCategory      string  `json:"leadCategory"`
	Completeness      int     `json:"profileCompleteness"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	CompletionTime    float64 `json:"completionTime"`
}

// ToQuestionView strips a catalog question down to its client shape.
func ToQuestionView(q catalog.Question) QuestionView {
	view := QuestionView{
		ID:          q.ID,
		Type:        string(q.Type),
		Text:        q.Text,
		Required:    q.Required,
		AllowOther:  q.AllowOther,
		MaxLength:   q.MaxLength,
		Placeholder: q.Placeholder,
	}
	for _, option := range q.Options {
		view.Options = append(view.Options, OptionView{Value: option.Value, Label: option.Label})
	}
	return view
}
