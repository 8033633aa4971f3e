// Package repository persists questionnaire sessions. A row is written when
// a session starts and updated once with the full response payload when the
// session completes; in-progress answers live in the draft store, not here.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/questionnaire/flow"
)

var ErrNotFound = errors.New("session not found")

// Session type discriminators, stored as-is in the session_type column.
const (
	TypeInitial             = "initial"
	TypeFollowUpQualified   = "follow_up_qualified"
	TypeTechnicalAssessment = "technical_assessment"
	TypeComplianceDeepDive  = "compliance_deep_dive"
)

// IsFollowUpType reports whether the session type draws from the follow-up
// question pool instead of the initial catalog prefix.
func IsFollowUpType(sessionType string) bool {
	switch sessionType {
	case TypeFollowUpQualified, TypeTechnicalAssessment, TypeComplianceDeepDive:
		return true
	}
	return false
}

type Session struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	SessionType string
	Channel     string
	Responses   answer.Map
	Metadata    *flow.Metadata
	StartedAt   time.Time
	CompletedAt *time.Time
}

type CreateSessionParams struct {
	LeadID      uuid.UUID
	SessionType string
	Channel     string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	var session Session
	err := r.pool.QueryRow(ctx, `
		INSERT INTO questionnaire_sessions (lead_id, session_type, channel)
		VALUES ($1, $2, $3)
		RETURNING id, lead_id, session_type, channel, started_at
	`, params.LeadID, params.SessionType, params.Channel).Scan(
		&session.ID, &session.LeadID, &session.SessionType, &session.Channel, &session.StartedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	session.Responses = answer.Map{}
	return session, nil
}

// CompleteSession writes the final payload. Completing an already completed
// session is rejected so a retried submission cannot double-write.
func (r *Repository) CompleteSession(ctx context.Context, sessionID uuid.UUID, payload flow.Payload, completedAt time.Time) error {
	responsesJSON, _ := json.Marshal(payload.Merged())
	metadataJSON, _ := json.Marshal(payload.Metadata)

	tag, err := r.pool.Exec(ctx, `
		UPDATE questionnaire_sessions
		SET responses = $2, metadata = $3, completed_at = $4
		WHERE id = $1 AND completed_at IS NULL
	`, sessionID, responsesJSON, metadataJSON, completedAt)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, session_type, channel, responses, metadata, started_at, completed_at
		FROM questionnaire_sessions
		WHERE id = $1
	`, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessionsByLead returns the lead's sessions, newest first.
func (r *Repository) ListSessionsByLead(ctx context.Context, leadID uuid.UUID) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, session_type, channel, responses, metadata, started_at, completed_at
		FROM questionnaire_sessions
		WHERE lead_id = $1
		ORDER BY started_at DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		session       Session
		responsesJSON []byte
		metadataJSON  []byte
	)
	if err := row.Scan(
		&session.ID, &session.LeadID, &session.SessionType, &session.Channel,
		&responsesJSON, &metadataJSON, &session.StartedAt, &session.CompletedAt,
	); err != nil {
		return Session{}, err
	}

	session.Responses = answer.Map{}
	if len(responsesJSON) > 0 {
		if err := json.Unmarshal(responsesJSON, &session.Responses); err != nil {
			return Session{}, fmt.Errorf("decode responses: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		var metadata flow.Metadata
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return Session{}, fmt.Errorf("decode metadata: %w", err)
		}
		session.Metadata = &metadata
	}
	return session, nil
}
