// Package draft persists in-progress questionnaire snapshots so a session
// can be resumed after the client disappears. Saves are best effort: the
// flow controller never blocks on the store, and a failed write only costs
// resumability, never the live session.
package draft

import (
	"context"
	"time"

	"leadqual_backend/internal/answer"
)

// Snapshot is a point-in-time copy of an in-progress session.
type Snapshot struct {
	LeadID       string             `json:"leadId"`
	SessionType  string             `json:"sessionType"`
	Responses    answer.Map         `json:"responses"`
	OtherText    map[string]string  `json:"otherText,omitempty"`
	CurrentIndex int                `json:"currentIndex"`
	TimeSpent    map[string]float64 `json:"timeSpent,omitempty"`
	Elapsed      float64            `json:"elapsed,omitempty"`
	SavedAt      time.Time          `json:"savedAt"`
}

// Store persists draft snapshots keyed by lead and session type.
type Store interface {
	// Load returns the stored snapshot, or ok=false when none exists.
	Load(ctx context.Context, leadID, sessionType string) (Snapshot, bool, error)
	// Save overwrites the snapshot for the key.
	Save(ctx context.Context, snapshot Snapshot) error
	// Clear removes the snapshot for the key. Clearing a missing key is
	// not an error.
	Clear(ctx context.Context, leadID, sessionType string) error
}

func draftKey(leadID, sessionType string) string {
	return "draft:" + leadID + ":" + sessionType
}
