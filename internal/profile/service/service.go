// Package service implements the profile manager: it absorbs finished
// questionnaire sessions, applies response edits with history, and keeps the
// derived score, category and completeness consistent with the stored
// responses.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/profile/repository"
	"leadqual_backend/internal/profile/transport"
	"leadqual_backend/internal/questionnaire/flow"
	qrepository "leadqual_backend/internal/questionnaire/repository"
	qservice "leadqual_backend/internal/questionnaire/service"
	"leadqual_backend/internal/scoring"
	"leadqual_backend/platform/apperr"
	"leadqual_backend/platform/logger"
)

// ProfileRepository persists profiles and edit history.
type ProfileRepository interface {
	Get(ctx context.Context, leadID uuid.UUID) (repository.Profile, error)
	Save(ctx context.Context, profile repository.Profile) error
	SetSnoozedUntil(ctx context.Context, leadID uuid.UUID, until *time.Time) error
	AppendEditHistory(ctx context.Context, entry repository.EditHistoryEntry) error
	ListEditHistory(ctx context.Context, leadID uuid.UUID) ([]repository.EditHistoryEntry, error)
}

// Service is the profile manager. Writes to one lead are serialized through
// a per-lead mutex so a concurrent edit and completion merge cannot
// interleave their read-modify-write cycles.
type Service struct {
	repo ProfileRepository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time

	scoringCfg           scoring.Config
	totalQuestions       int
	engagementQuestionID string

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New(repo ProfileRepository, cat *catalog.Catalog, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:                 repo,
		bus:                  bus,
		log:                  log,
		now:                  time.Now,
		scoringCfg:           scoring.ConfigFromCatalog(cat),
		totalQuestions:       cat.TotalQuestions(),
		engagementQuestionID: cat.EngagementQuestionID(),
		locks:                make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) leadLock(leadID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[leadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[leadID] = lock
	}
	return lock
}

// ApplyCompletion merges a finished session into the profile, creating it on
// the first completion, and recomputes the derived metrics. It is the
// completion sink of the questionnaire flow.
func (s *Service) ApplyCompletion(ctx context.Context, leadID uuid.UUID, sessionType string, payload flow.Payload) (qservice.CompletionResult, error) {
	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.repo.Get(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		profile = repository.Profile{
			LeadID:            leadID,
			InitialResponses:  answer.Map{},
			FollowUpResponses: answer.Map{},
		}
	} else if err != nil {
		return qservice.CompletionResult{}, err
	}

	merged := payload.Merged()
	if qrepository.IsFollowUpType(sessionType) {
		profile.FollowUpResponses = answer.MergeMaps(profile.FollowUpResponses, merged)
	} else {
		profile.InitialResponses = answer.MergeMaps(profile.InitialResponses, merged)
	}

	completedAt := s.now()
	profile.LastQuestionnaireAt = &completedAt

	s.rescore(&profile)
	if err := s.repo.Save(ctx, profile); err != nil {
		return qservice.CompletionResult{}, err
	}

	s.publishRescored(ctx, profile)
	s.log.ScoreComputed(leadID.String(), profile.LeadScore, profile.LeadCategory, profile.Completeness)

	return qservice.CompletionResult{
		LeadScore:    profile.LeadScore,
		LeadCategory: profile.LeadCategory,
		Completeness: profile.Completeness,
	}, nil
}

// EditResponse changes one recorded answer, records the old value and the
// editing user in the edit history and recomputes the derived metrics.
// Unknown keys land in the follow-up map; keys owned by the initial map are
// edited in place.
func (s *Service) EditResponse(ctx context.Context, leadID, editedBy uuid.UUID, req transport.EditResponseRequest) (transport.ProfileResponse, error) {
	if req.Answer == nil {
		return transport.ProfileResponse{}, apperr.Validation("answer is required")
	}

	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.repo.Get(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProfileResponse{}, apperr.NotFound("profile not found")
	}
	if err != nil {
		return transport.ProfileResponse{}, err
	}

	oldValue, owner := lookupResponse(profile, req.QuestionID)

	editedAt := s.now()
	entry := repository.EditHistoryEntry{
		LeadID:     leadID,
		QuestionID: req.QuestionID,
		EditedBy:   editedBy,
		OldValue:   oldValue,
		NewValue:   *req.Answer,
		EditedAt:   editedAt,
	}
	if err := s.repo.AppendEditHistory(ctx, entry); err != nil {
		return transport.ProfileResponse{}, err
	}

	owner[req.QuestionID] = *req.Answer
	profile.LastEditAt = &editedAt

	s.rescore(&profile)
	if err := s.repo.Save(ctx, profile); err != nil {
		return transport.ProfileResponse{}, err
	}

	s.bus.Publish(ctx, events.ResponseEdited{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		QuestionID: req.QuestionID,
		EditedBy:   editedBy,
		EditedAt:   editedAt,
	})
	s.publishRescored(ctx, profile)
	s.log.ScoreComputed(leadID.String(), profile.LeadScore, profile.LeadCategory, profile.Completeness)

	return toProfileResponse(profile), nil
}

// lookupResponse finds the current value and the map that owns the key. New
// keys default to the follow-up map; initial ownership wins when both maps
// carry the key.
func lookupResponse(profile repository.Profile, questionID string) (answer.Value, answer.Map) {
	if value, ok := profile.InitialResponses[questionID]; ok {
		return value, profile.InitialResponses
	}
	if value, ok := profile.FollowUpResponses[questionID]; ok {
		return value, profile.FollowUpResponses
	}
	return answer.Value{}, profile.FollowUpResponses
}

// Get returns the profile read model.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID) (transport.ProfileResponse, error) {
	profile, err := s.repo.Get(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProfileResponse{}, apperr.NotFound("profile not found")
	}
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toProfileResponse(profile), nil
}

// EditHistory returns the lead's edits, newest first.
func (s *Service) EditHistory(ctx context.Context, leadID uuid.UUID) ([]transport.EditHistoryEntryView, error) {
	entries, err := s.repo.ListEditHistory(ctx, leadID)
	if err != nil {
		return nil, err
	}

	views := make([]transport.EditHistoryEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, transport.EditHistoryEntryView{
			QuestionID: entry.QuestionID,
			EditedBy:   entry.EditedBy.String(),
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			EditedAt:   entry.EditedAt,
		})
	}
	return views, nil
}

// Snapshot returns the raw stored profile for other modules.
func (s *Service) Snapshot(ctx context.Context, leadID uuid.UUID) (repository.Profile, error) {
	return s.repo.Get(ctx, leadID)
}

// SetSnoozedUntil updates the follow-up snooze window.
func (s *Service) SetSnoozedUntil(ctx context.Context, leadID uuid.UUID, until *time.Time) error {
	err := s.repo.SetSnoozedUntil(ctx, leadID, until)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("profile not found")
	}
	return err
}

// rescore recomputes the derived metrics from the current response maps.
// The text engagement input is recomputed from the stored text answer, so a
// later edit of the free-text response moves the score with it.
func (s *Service) rescore(profile *repository.Profile) {
	merged := answer.MergeMaps(profile.InitialResponses, profile.FollowUpResponses)

	var engagementText string
	if value, ok := merged[s.engagementQuestionID]; ok {
		engagementText = value.Text()
	}
	engagement := scoring.TextEngagementScore(engagementText)

	profile.LeadScore = scoring.LeadScore(merged, s.scoringCfg, engagement)
	profile.LeadCategory = string(scoring.LeadCategory(profile.LeadScore, s.scoringCfg.Thresholds))
	profile.Completeness = scoring.ProfileCompleteness(profile.InitialResponses, profile.FollowUpResponses, s.totalQuestions)
}

func (s *Service) publishRescored(ctx context.Context, profile repository.Profile) {
	s.bus.Publish(ctx, events.ProfileRescored{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       profile.LeadID,
		LeadScore:    profile.LeadScore,
		LeadCategory: profile.LeadCategory,
		Completeness: profile.Completeness,
	})
}

func toProfileResponse(profile repository.Profile) transport.ProfileResponse {
	return transport.ProfileResponse{
		LeadID:              profile.LeadID.String(),
		Responses:           answer.MergeMaps(profile.InitialResponses, profile.FollowUpResponses),
		InitialResponses:    profile.InitialResponses,
		FollowUpResponses:   profile.FollowUpResponses,
		LeadScore:           profile.LeadScore,
		LeadCategory:        profile.LeadCategory,
		Completeness:        profile.Completeness,
		LastQuestionnaireAt: profile.LastQuestionnaireAt,
		LastEditAt:          profile.LastEditAt,
		SnoozedUntil:        profile.SnoozedUntil,
		UpdatedAt:           profile.UpdatedAt,
	}
}
