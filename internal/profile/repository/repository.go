// Package repository persists lead profiles and their edit history.
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
)

var ErrNotFound = errors.New("profile not found")

// Profile is a lead's accumulated qualification state. Initial and follow-up
// responses stay in separate maps so an edit lands in the map that owns the
// question.
type Profile struct {
	LeadID              uuid.UUID
	InitialResponses    answer.Map
	FollowUpResponses   answer.Map
	LeadScore           int
	LeadCategory        string
	Completeness        int
	LastQuestionnaireAt *time.Time
	LastEditAt          *time.Time
	SnoozedUntil        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EditHistoryEntry records one response change, oldest state first.
type EditHistoryEntry struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	QuestionID string
	EditedBy   uuid.UUID
	OldValue   answer.Value
	NewValue   answer.Value
	EditedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, leadID uuid.UUID) (Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT lead_id, initial_responses, follow_up_responses, lead_score, lead_category,
			completeness, last_questionnaire_at, last_edit_at, snoozed_until, created_at, updated_at
		FROM lead_profiles
		WHERE lead_id = $1
	`, leadID)

	profile, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// Save upserts the full profile state.
func (r *Repository) Save(ctx context.Context, profile Profile) error {
	initialJSON, _ := json.Marshal(profile.InitialResponses)
	followUpJSON, _ := json.Marshal(profile.FollowUpResponses)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_profiles (
			lead_id, initial_responses, follow_up_responses, lead_score, lead_category,
			completeness, last_questionnaire_at, last_edit_at, snoozed_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (lead_id) DO UPDATE SET
			initial_responses = EXCLUDED.initial_responses,
			follow_up_responses = EXCLUDED.follow_up_responses,
			lead_score = EXCLUDED.lead_score,
			lead_category = EXCLUDED.lead_category,
			completeness = EXCLUDED.completeness,
			last_questionnaire_at = EXCLUDED.last_questionnaire_at,
			last_edit_at = EXCLUDED.last_edit_at,
			snoozed_until = EXCLUDED.snoozed_until,
			updated_at = now()
	`, profile.LeadID, initialJSON, followUpJSON, profile.LeadScore, profile.LeadCategory,
		profile.Completeness, profile.LastQuestionnaireAt, profile.LastEditAt, profile.SnoozedUntil)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// SetSnoozedUntil updates only the snooze window. A nil until clears it.
func (r *Repository) SetSnoozedUntil(ctx context.Context, leadID uuid.UUID, until *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_profiles
		SET snoozed_until = $2, updated_at = now()
		WHERE lead_id = $1
	`, leadID, until)
	if err != nil {
		return fmt.Errorf("set snooze: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AppendEditHistory(ctx context.Context, entry EditHistoryEntry) error {
	oldJSON, _ := json.Marshal(entry.OldValue)
	newJSON, _ := json.Marshal(entry.NewValue)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO profile_edit_history (lead_id, question_id, edited_by, old_value, new_value, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.LeadID, entry.QuestionID, entry.EditedBy, oldJSON, newJSON, entry.EditedAt)
	if err != nil {
		return fmt.Errorf("append edit history: %w", err)
	}
	return nil
}

// ListEditHistory returns the lead's edits, newest first.
func (r *Repository) ListEditHistory(ctx context.Context, leadID uuid.UUID) ([]EditHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, question_id, edited_by, old_value, new_value, edited_at
		FROM profile_edit_history
		WHERE lead_id = $1
		ORDER BY edited_at DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list edit history: %w", err)
	}
	defer rows.Close()

	entries := make([]EditHistoryEntry, 0)
	for rows.Next() {
		var (
			entry   EditHistoryEntry
			oldJSON []byte
			newJSON []byte
		)
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.QuestionID, &entry.EditedBy, &oldJSON, &newJSON, &entry.EditedAt); err != nil {
			return nil, fmt.Errorf("scan edit history: %w", err)
		}
		if err := json.Unmarshal(oldJSON, &entry.OldValue); err != nil {
			return nil, fmt.Errorf("decode old value: %w", err)
		}
		if err := json.Unmarshal(newJSON, &entry.NewValue); err != nil {
			return nil, fmt.Errorf("decode new value: %w", err)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// ListSnoozeExpired returns lead ids whose snooze window elapsed before now.
func (r *Repository) ListSnoozeExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id FROM lead_profiles
		WHERE snoozed_until IS NOT NULL AND snoozed_until <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired snoozes: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		profile      Profile
		initialJSON  []byte
		followUpJSON []byte
	)
	if err := row.Scan(
		&profile.LeadID, &initialJSON, &followUpJSON, &profile.LeadScore, &profile.LeadCategory,
		&profile.Completeness, &profile.LastQuestionnaireAt, &profile.LastEditAt, &profile.SnoozedUntil,
		&profile.CreatedAt, &profile.UpdatedAt,
	); err != nil {
		return Profile{}, err
	}

	profile.InitialResponses = answer.Map{}
	if len(initialJSON) > 0 {
		if err := json.Unmarshal(initialJSON, &profile.InitialResponses); err != nil {
			return Profile{}, fmt.Errorf("decode initial responses: %w", err)
		}
	}
	profile.FollowUpResponses = answer.Map{}
	if len(followUpJSON) > 0 {
		if err := json.Unmarshal(followUpJSON, &profile.FollowUpResponses); err != nil {
			return Profile{}, fmt.Errorf("decode follow-up responses: %w", err)
		}
	}
	return profile, nil
}
