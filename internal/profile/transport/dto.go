// Package transport defines the wire shapes for the profile endpoints.
package transport

import (
	"time"

	"leadqual_backend/internal/answer"
)

// EditResponseRequest changes one recorded answer.
type EditResponseRequest struct {
	QuestionID string        `json:"questionId" validate:"required,max=100"`
	Answer     *answer.Value `json:"answer" validate:"required"`
}

// ProfileResponse is the profile read model.
type ProfileResponse struct {
	LeadID              string     `json:"leadId"`
	Responses           answer.Map `json:"responses"`
	InitialResponses    answer.Map `json:"initialResponses"`
	FollowUpResponses   answer.Map `json:"followUpResponses"`
	LeadScore           int        `json:"leadScore"`
	LeadCategory        string     `json:"leadCategory"`
	Completeness        int        `json:"profileCompleteness"`
	LastQuestionnaireAt *time.Time `json:"lastQuestionnaireAt,omitempty"`
	LastEditAt          *time.Time `json:"lastEditAt,omitempty"`
	SnoozedUntil        *time.Time `json:"snoozedUntil,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// EditHistoryEntryView is one recorded change.
type EditHistoryEntryView struct {
	QuestionID string       `json:"questionId"`
	EditedBy   string       `json:"editedBy"`
	OldValue   answer.Value `json:"oldValue"`
	NewValue   answer.Value `json:"newValue"`
	EditedAt   time.Time    `json:"editedAt"`
}
