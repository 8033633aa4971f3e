// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadqual_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Questionnaire Domain Events
// =============================================================================

// QuestionnaireCompleted is published after a questionnaire session has been
// finalized and merged into the lead profile.
type QuestionnaireCompleted struct {
	BaseEvent
	SessionID         uuid.UUID `json:"sessionId"`
	LeadID            uuid.UUID `json:"leadId"`
	SessionType       string    `json:"sessionType"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CompletionTime    float64   `json:"completionTimeSeconds"`
	IsFollowUp        bool      `json:"isFollowUp"`
}

func (e QuestionnaireCompleted) EventName() string { return "questionnaire.session.completed" }

// =============================================================================
// Profile Domain Events
// =============================================================================

// ResponseEdited is published when a previously recorded answer is changed
// through the edit flow.
type ResponseEdited struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	QuestionID string    `json:"questionId"`
	EditedBy   uuid.UUID `json:"editedBy"`
	EditedAt   time.Time `json:"editedAt"`
}

func (e ResponseEdited) EventName() string { return "profile.response.edited" }

// ProfileRescored is published whenever the derived metrics of a profile
// change (after a completion merge or an edit).
type ProfileRescored struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	LeadScore    int       `json:"leadScore"`
	LeadCategory string    `json:"leadCategory"`
	Completeness int       `json:"profileCompleteness"`
}

func (e ProfileRescored) EventName() string { return "profile.rescored" }

// =============================================================================
// Follow-up Domain Events
// =============================================================================

// FollowUpSnoozeExpired is published by the scheduler worker when a snooze
// window has elapsed and the follow-up prompt may be evaluated again.
type FollowUpSnoozeExpired struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e FollowUpSnoozeExpired) EventName() string { return "followup.snooze.expired" }
