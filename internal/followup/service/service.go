// Package service implements the follow-up scheduler: it decides when a
// lead should be prompted for the unanswered follow-up questions, and
// manages snoozing and dismissal of that prompt.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/followup/transport"
	profilerepo "leadqual_backend/internal/profile/repository"
	qtransport "leadqual_backend/internal/questionnaire/transport"
	"leadqual_backend/internal/scheduler"
	"leadqual_backend/platform/apperr"
	"leadqual_backend/platform/config"
	"leadqual_backend/platform/logger"
)

// Prompt suppression reasons reported to the client.
const (
	reasonSnoozed    = "snoozed"
	reasonDismissed  = "dismissed"
	reasonNoProfile  = "no_profile"
	reasonAllCovered = "all_answered"
)

// ProfileReader is the slice of the profile service the scheduler needs.
type ProfileReader interface {
	Snapshot(ctx context.Context, leadID uuid.UUID) (profilerepo.Profile, error)
	SetSnoozedUntil(ctx context.Context, leadID uuid.UUID, until *time.Time) error
}

// Service evaluates and manages follow-up prompts. Dismissals are held in
// memory only: a dismissed prompt stays hidden until the process restarts,
// while a snooze is persisted on the profile and enforced across restarts.
type Service struct {
	cat      *catalog.Catalog
	profiles ProfileReader
	snoozes  scheduler.SnoozeScheduler
	log      *logger.Logger
	cfg      config.QuestionnaireConfig
	now      func() time.Time

	mu        sync.Mutex
	dismissed map[uuid.UUID]struct{}
}

func New(cat *catalog.Catalog, profiles ProfileReader, snoozes scheduler.SnoozeScheduler, bus events.Bus, log *logger.Logger, cfg config.QuestionnaireConfig) *Service {
	s := &Service{
		cat:       cat,
		profiles:  profiles,
		snoozes:   snoozes,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		dismissed: make(map[uuid.UUID]struct{}),
	}

	// When a snooze window elapses the scheduler worker publishes the
	// expiry; clearing the persisted window re-arms the prompt.
	bus.Subscribe(events.FollowUpSnoozeExpired{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.FollowUpSnoozeExpired)
		if !ok {
			return nil
		}
		return s.clearSnooze(ctx, e.LeadID)
	}))

	return s
}

// Evaluate decides whether the follow-up prompt should be shown for the
// lead, and with which questions. At most the configured number of
// candidates is offered, in catalog order, excluding everything already
// answered.
func (s *Service) Evaluate(ctx context.Context, leadID uuid.UUID) (transport.PromptResponse, error) {
	profile, err := s.profiles.Snapshot(ctx, leadID)
	if errors.Is(err, profilerepo.ErrNotFound) {
		return transport.PromptResponse{Show: false, Reason: reasonNoProfile}, nil
	}
	if err != nil {
		return transport.PromptResponse{}, err
	}

	if profile.SnoozedUntil != nil && s.now().Before(*profile.SnoozedUntil) {
		return transport.PromptResponse{Show: false, Reason: reasonSnoozed, SnoozedUntil: profile.SnoozedUntil}, nil
	}

	s.mu.Lock()
	_, dismissed := s.dismissed[leadID]
	s.mu.Unlock()
	if dismissed {
		return transport.PromptResponse{Show: false, Reason: reasonDismissed}, nil
	}

	max := s.cfg.GetFollowUpMaxQuestions()
	var questions []qtransport.QuestionView
	for _, q := range s.cat.FollowUpCandidates() {
		if answered(profile, q.ID) {
			continue
		}
		questions = append(questions, qtransport.ToQuestionView(q))
		if max > 0 && len(questions) == max {
			break
		}
	}

	if len(questions) == 0 {
		return transport.PromptResponse{Show: false, Reason: reasonAllCovered}, nil
	}
	return transport.PromptResponse{Show: true, Questions: questions}, nil
}

func answered(profile profilerepo.Profile, questionID string) bool {
	if _, ok := profile.InitialResponses[questionID]; ok {
		return true
	}
	_, ok := profile.FollowUpResponses[questionID]
	return ok
}

// Snooze hides the prompt for the given number of hours and schedules the
// expiry task that re-arms it.
func (s *Service) Snooze(ctx context.Context, leadID uuid.UUID, req transport.SnoozeRequest) (transport.SnoozeResponse, error) {
	until := s.now().Add(time.Duration(req.Hours) * time.Hour)
	if err := s.profiles.SetSnoozedUntil(ctx, leadID, &until); err != nil {
		return transport.SnoozeResponse{}, err
	}

	if s.snoozes != nil {
		if err := s.snoozes.ScheduleSnoozeExpiry(ctx, leadID.String(), until); err != nil {
			// The expiry sweep is a convenience; the Evaluate time check
			// keeps the window correct even without the task.
			s.log.Error("schedule snooze expiry failed", "error", err, "leadId", leadID)
		}
	}

	s.log.Info("followup_snoozed", "lead_id", leadID.String(), "until", until)
	return transport.SnoozeResponse{SnoozedUntil: until}, nil
}

// Dismiss hides the prompt for the rest of the process lifetime. Nothing is
// persisted: a restart brings the prompt back.
func (s *Service) Dismiss(_ context.Context, leadID uuid.UUID) error {
	s.mu.Lock()
	s.dismissed[leadID] = struct{}{}
	s.mu.Unlock()

	s.log.Info("followup_dismissed", "lead_id", leadID.String())
	return nil
}

func (s *Service) clearSnooze(ctx context.Context, leadID uuid.UUID) error {
	err := s.profiles.SetSnoozedUntil(ctx, leadID, nil)
	if apperr.GetKind(err) == apperr.KindNotFound {
		return nil
	}
	return err
}
