// Package transport defines the wire shapes for the follow-up endpoints.
package transport

import (
	"time"

	qtransport "leadqual_backend/internal/questionnaire/transport"
)

// SnoozeRequest postpones the follow-up prompt for a number of hours.
type SnoozeRequest struct {
	Hours int `json:"hours" validate:"required,min=1,max=720"`
}

// PromptResponse tells the client whether to show the follow-up prompt and
// with which questions.
type PromptResponse struct {
	Show         bool                      `json:"show"`
	Reason       string                    `json:"reason,omitempty"`
	Questions    []qtransport.QuestionView `json:"questions,omitempty"`
	SnoozedUntil *time.Time                `json:"snoozedUntil,omitempty"`
}

// SnoozeResponse confirms the new snooze window.
type SnoozeResponse struct {
	SnoozedUntil time.Time `json:"snoozedUntil"`
}
