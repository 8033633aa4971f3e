package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/followup/transport"
	profilerepo "leadqual_backend/internal/profile/repository"
	"leadqual_backend/platform/logger"
)

const testCatalogYAML = `
questions:
  - id: sector
    type: single_choice
    text: "What sector are you in?"
    required: true
    options:
      - { value: health, label: Health, score: 40 }
  - id: budget_range
    type: single_choice
    text: "What budget do you have in mind?"
    follow_up: true
    options:
      - { value: low, label: "Under 5k", score: 5 }
  - id: timeline
    type: single_choice
    text: "When do you want to start?"
    follow_up: true
    options:
      - { value: now, label: "Right away", score: 30 }
  - id: team_size
    type: single_choice
    text: "How big is your team?"
    follow_up: true
    options:
      - { value: small, label: "Under 10", score: 5 }
components:
  urgency: 1.0
  budget: 1.0
  fit: 1.0
  engagement: 1.0
  decision: 1.0
thresholds: { a1: 80, b1: 60, c1: 40 }
`

type testConfig struct{}

func (testConfig) GetCatalogPath() string         { return "" }
func (testConfig) GetMaxQuestionsPerSession() int { return 10 }
func (testConfig) GetFollowUpMaxQuestions() int   { return 2 }
func (testConfig) GetAllowSkip() bool             { return false }

type fakeProfiles struct {
	profiles map[uuid.UUID]profilerepo.Profile
}

func (f *fakeProfiles) Snapshot(_ context.Context, leadID uuid.UUID) (profilerepo.Profile, error) {
	profile, ok := f.profiles[leadID]
	if !ok {
		return profilerepo.Profile{}, profilerepo.ErrNotFound
	}
	return profile, nil
}

func (f *fakeProfiles) SetSnoozedUntil(_ context.Context, leadID uuid.UUID, until *time.Time) error {
	profile, ok := f.profiles[leadID]
	if !ok {
		return profilerepo.ErrNotFound
	}
	profile.SnoozedUntil = until
	f.profiles[leadID] = profile
	return nil
}

type fakeScheduler struct {
	scheduled []time.Time
}

func (f *fakeScheduler) ScheduleSnoozeExpiry(_ context.Context, _ string, runAt time.Time) error {
	f.scheduled = append(f.scheduled, runAt)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeProfiles, *fakeScheduler, *events.InMemoryBus) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	profiles := &fakeProfiles{profiles: make(map[uuid.UUID]profilerepo.Profile)}
	sched := &fakeScheduler{}
	return New(cat, profiles, sched, bus, log, testConfig{}), profiles, sched, bus
}

func seedProfile(profiles *fakeProfiles, leadID uuid.UUID, answered ...string) {
	profile := profilerepo.Profile{
		LeadID:            leadID,
		InitialResponses:  answer.Map{"sector": answer.Single("health")},
		FollowUpResponses: answer.Map{},
	}
	for _, id := range answered {
		profile.FollowUpResponses[id] = answer.Single("low")
	}
	profiles.profiles[leadID] = profile
}

func TestEvaluate_OffersBoundedUnansweredCandidates(t *testing.T) {
	svc, profiles, _, _ := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID)

	prompt, err := svc.Evaluate(context.Background(), leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !prompt.Show {
		t.Fatalf("expected prompt, got reason %s", prompt.Reason)
	}
	// Three candidates exist but the session cap is two.
	if len(prompt.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(prompt.Questions))
	}
	if prompt.Questions[0].ID != "budget_range" || prompt.Questions[1].ID != "timeline" {
		t.Fatalf("candidates out of catalog order: %+v", prompt.Questions)
	}
}

func TestEvaluate_ExcludesAnsweredCandidates(t *testing.T) {
	svc, profiles, _, _ := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID, "budget_range", "timeline")

	prompt, err := svc.Evaluate(context.Background(), leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !prompt.Show || len(prompt.Questions) != 1 || prompt.Questions[0].ID != "team_size" {
		t.Fatalf("expected only team_size, got %+v", prompt)
	}
}

func TestEvaluate_AllAnsweredSuppressesPrompt(t *testing.T) {
	svc, profiles, _, _ := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID, "budget_range", "timeline", "team_size")

	prompt, err := svc.Evaluate(context.Background(), leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if prompt.Show || prompt.Reason != "all_answered" {
		t.Fatalf("expected suppression, got %+v", prompt)
	}
}

func TestEvaluate_MissingProfileSuppressesPrompt(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	prompt, err := svc.Evaluate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if prompt.Show || prompt.Reason != "no_profile" {
		t.Fatalf("expected no_profile, got %+v", prompt)
	}
}

func TestSnooze_HidesPromptAndSchedulesExpiry(t *testing.T) {
	svc, profiles, sched, _ := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID)
	ctx := context.Background()

	resp, err := svc.Snooze(ctx, leadID, transport.SnoozeRequest{Hours: 24})
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if until := profiles.profiles[leadID].SnoozedUntil; until == nil || !until.Equal(resp.SnoozedUntil) {
		t.Fatalf("snooze not persisted: %v", until)
	}
	if len(sched.scheduled) != 1 || !sched.scheduled[0].Equal(resp.SnoozedUntil) {
		t.Fatalf("expiry not scheduled at the window end: %v", sched.scheduled)
	}

	prompt, err := svc.Evaluate(ctx, leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if prompt.Show || prompt.Reason != "snoozed" {
		t.Fatalf("expected snoozed, got %+v", prompt)
	}
}

func TestSnoozeExpiredEvent_ReArmsPrompt(t *testing.T) {
	svc, profiles, _, bus := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID)
	ctx := context.Background()

	if _, err := svc.Snooze(ctx, leadID, transport.SnoozeRequest{Hours: 1}); err != nil {
		t.Fatalf("snooze: %v", err)
	}

	if err := bus.PublishSync(ctx, events.FollowUpSnoozeExpired{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
	}); err != nil {
		t.Fatalf("publish expiry: %v", err)
	}

	prompt, err := svc.Evaluate(ctx, leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !prompt.Show {
		t.Fatalf("expected prompt after expiry, got %+v", prompt)
	}
}

func TestDismiss_SuppressesUntilRestart(t *testing.T) {
	svc, profiles, _, _ := newTestService(t)
	leadID := uuid.New()
	seedProfile(profiles, leadID)
	ctx := context.Background()

	if err := svc.Dismiss(ctx, leadID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	prompt, err := svc.Evaluate(ctx, leadID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if prompt.Show || prompt.Reason != "dismissed" {
		t.Fatalf("expected dismissed, got %+v", prompt)
	}

	// Dismissal is not persisted anywhere.
	if profiles.profiles[leadID].SnoozedUntil != nil {
		t.Fatal("dismiss must not touch the persisted snooze window")
	}
}
