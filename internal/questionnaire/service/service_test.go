package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/questionnaire/draft"
	"leadqual_backend/internal/questionnaire/flow"
	"leadqual_backend/internal/questionnaire/repository"
	"leadqual_backend/internal/questionnaire/transport"
	"leadqual_backend/platform/apperr"
	"leadqual_backend/platform/logger"
)

const testCatalogYAML = `
questions:
  - id: sector
    type: single_choice
    text: "What sector are you in?"
    required: true
    options:
      - { value: health, label: Health, score: 30 }
      - { value: retail, label: Retail, score: 10 }
    scoring_weight: { fit: 1.0 }
  - id: concerns
    type: multiple_choice
    text: "What worries you most?"
    allow_other: true
    options:
      - { value: phishing, label: Phishing }
      - { value: backup, label: Backups }
    scoring_weight: { urgency: 0.5 }
  - id: details
    type: text_area
    text: "Tell us more"
    required: true
    scoring_weight: { engagement: 1.0 }
  - id: budget_range
    type: single_choice
    text: "What budget do you have in mind?"
    follow_up: true
    options:
      - { value: low, label: "Under 5k", score: 5 }
      - { value: high, label: "Over 5k", score: 25 }
    scoring_weight: { budget: 1.0 }
  - id: timeline
    type: single_choice
    text: "When do you want to start?"
    follow_up: true
    options:
      - { value: now, label: "Right away", score: 30 }
      - { value: later, label: "This year", score: 10 }
    scoring_weight: { urgency: 1.0 }
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

type fakeRepo struct {
	created   []repository.Session
	completed map[uuid.UUID]flow.Payload
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{completed: make(map[uuid.UUID]flow.Payload)}
}

func (r *fakeRepo) CreateSession(_ context.Context, params repository.CreateSessionParams) (repository.Session, error) {
	session := repository.Session{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		SessionType: params.SessionType,
		Channel:     params.Channel,
		Responses:   answer.Map{},
		StartedAt:   time.Now(),
	}
	r.created = append(r.created, session)
	return session, nil
}

func (r *fakeRepo) CompleteSession(_ context.Context, sessionID uuid.UUID, payload flow.Payload, _ time.Time) error {
	r.completed[sessionID] = payload
	return nil
}

func (r *fakeRepo) GetSession(_ context.Context, sessionID uuid.UUID) (repository.Session, error) {
	for _, s := range r.created {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return repository.Session{}, repository.ErrNotFound
}

func (r *fakeRepo) ListSessionsByLead(_ context.Context, leadID uuid.UUID) ([]repository.Session, error) {
	var out []repository.Session
	for _, s := range r.created {
		if s.LeadID == leadID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	failNext bool
	applied  []flow.Payload
	result   CompletionResult
}

func (p *fakeProfiles) ApplyCompletion(_ context.Context, _ uuid.UUID, _ string, payload flow.Payload) (CompletionResult, error) {
	if p.failNext {
		p.failNext = false
		return CompletionResult{}, errors.New("profile store down")
	}
	p.applied = append(p.applied, payload)
	return p.result, nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	profiles *fakeProfiles
	drafts   *draft.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	log := logger.New("development")
	repo := newFakeRepo()
	profiles := &fakeProfiles{result: CompletionResult{LeadScore: 55, LeadCategory: "C1", Completeness: 60}}
	drafts := draft.NewMemoryStore()
	svc := New(cat, repo, drafts, profiles, events.NewInMemoryBus(log), log, testConfig{})
	return &fixture{svc: svc, repo: repo, profiles: profiles, drafts: drafts}
}

func startInitial(t *testing.T, fx *fixture, leadID uuid.UUID) transport.SessionStateResponse {
	t.Helper()
	state, err := fx.svc.Start(context.Background(), transport.StartSessionRequest{
		LeadID:      leadID.String(),
		SessionType: repository.TypeInitial,
		Channel:     "web",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return state
}

func sessionID(t *testing.T, state transport.SessionStateResponse) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(state.SessionID)
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	return id
}

func answerValue(v answer.Value) transport.AnswerRequest {
	return transport.AnswerRequest{Answer: &v}
}

func TestStart_InitialSessionExcludesFollowUpQuestions(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())

	if state.TotalQuestions != 3 {
		t.Fatalf("expected 3 main questions, got %d", state.TotalQuestions)
	}
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != "sector" {
		t.Fatalf("expected sector first, got %+v", state.CurrentQuestion)
	}
	if state.Status != "answering" {
		t.Fatalf("expected answering, got %s", state.Status)
	}
}

func TestAnswer_WrongShapeRejected(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)

	_, err := fx.svc.Answer(context.Background(), id, answerValue(answer.Multi([]string{"health"})))
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for multi on single choice, got %v", err)
	}
}

func TestNext_RequiredUnansweredBlocked(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)

	_, err := fx.svc.Next(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	current, err := fx.svc.State(context.Background(), id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if current.QuestionIndex != 0 {
		t.Fatalf("index moved on blocked next: %d", current.QuestionIndex)
	}
}

func completeInitial(t *testing.T, fx *fixture, id uuid.UUID) (transport.SessionStateResponse, error) {
	t.Helper()
	ctx := context.Background()
	if _, err := fx.svc.Answer(ctx, id, answerValue(answer.Single("health"))); err != nil {
		t.Fatalf("answer sector: %v", err)
	}
	if _, err := fx.svc.Next(ctx, id); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := fx.svc.Next(ctx, id); err != nil {
		t.Fatalf("next past optional: %v", err)
	}
	if _, err := fx.svc.Answer(ctx, id, answerValue(answer.FreeText("hemos tenido un incidente"))); err != nil {
		t.Fatalf("answer details: %v", err)
	}
	return fx.svc.Next(ctx, id)
}

func TestNext_LastQuestionFinalizesSession(t *testing.T) {
	fx := newFixture(t)
	leadID := uuid.New()
	state := startInitial(t, fx, leadID)
	id := sessionID(t, state)

	final, err := completeInitial(t, fx, id)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != "completed" {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.Completion == nil || final.Completion.LeadScore != 55 {
		t.Fatalf("completion summary missing: %+v", final.Completion)
	}
	if len(fx.profiles.applied) != 1 {
		t.Fatalf("profile writer called %d times", len(fx.profiles.applied))
	}
	if _, ok := fx.repo.completed[id]; !ok {
		t.Fatal("session row not completed")
	}

	// The registry drops completed sessions.
	if _, err := fx.svc.State(context.Background(), id); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found after completion, got %v", err)
	}
}

func TestNext_SinkFailureRollsBackAndAllowsRetry(t *testing.T) {
	fx := newFixture(t)
	fx.profiles.failNext = true
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)

	_, err := completeInitial(t, fx, id)
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	// Session survives with the buffer intact on the last question.
	current, err := fx.svc.State(context.Background(), id)
	if err != nil {
		t.Fatalf("state after rollback: %v", err)
	}
	if current.Status != "answering" || current.QuestionIndex != 2 {
		t.Fatalf("rollback state: status=%s index=%d", current.Status, current.QuestionIndex)
	}
	if len(current.Responses) != 2 {
		t.Fatalf("buffer lost on rollback: %v", current.Responses)
	}

	// Retrying the submission now succeeds.
	final, err := fx.svc.Next(context.Background(), id)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if final.Status != "completed" {
		t.Fatalf("expected completed after retry, got %s", final.Status)
	}
}

func TestStart_ResumesFromDraft(t *testing.T) {
	fx := newFixture(t)
	leadID := uuid.New()

	seed := draft.Snapshot{
		LeadID:       leadID.String(),
		SessionType:  repository.TypeInitial,
		Responses:    answer.Map{"sector": answer.Single("retail")},
		CurrentIndex: 1,
		SavedAt:      time.Now(),
	}
	if err := fx.drafts.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	state := startInitial(t, fx, leadID)
	if !state.Resumed {
		t.Fatal("expected resumed session")
	}
	if state.QuestionIndex != 1 {
		t.Fatalf("expected resume at index 1, got %d", state.QuestionIndex)
	}
	if !state.Responses["sector"].Equal(answer.Single("retail")) {
		t.Fatalf("draft answers not restored: %v", state.Responses)
	}
}

func TestFinalize_ClearsDraft(t *testing.T) {
	fx := newFixture(t)
	leadID := uuid.New()

	seed := draft.Snapshot{LeadID: leadID.String(), SessionType: repository.TypeInitial}
	if err := fx.drafts.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	state := startInitial(t, fx, leadID)
	if _, err := completeInitial(t, fx, sessionID(t, state)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if _, ok, _ := fx.drafts.Load(context.Background(), leadID.String(), repository.TypeInitial); ok {
		t.Fatal("draft survived completion")
	}
}

func TestStart_StartFreshDiscardsDraft(t *testing.T) {
	fx := newFixture(t)
	leadID := uuid.New()

	seed := draft.Snapshot{
		LeadID:       leadID.String(),
		SessionType:  repository.TypeInitial,
		Responses:    answer.Map{"sector": answer.Single("retail")},
		CurrentIndex: 1,
		SavedAt:      time.Now(),
	}
	if err := fx.drafts.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	state, err := fx.svc.Start(context.Background(), transport.StartSessionRequest{
		LeadID:      leadID.String(),
		SessionType: repository.TypeInitial,
		StartFresh:  true,
	})
	if err != nil {
		t.Fatalf("start fresh: %v", err)
	}
	if state.Resumed {
		t.Fatal("fresh start resumed the draft")
	}
	if state.QuestionIndex != 0 || len(state.Responses) != 0 {
		t.Fatalf("draft state leaked into fresh session: index=%d responses=%v", state.QuestionIndex, state.Responses)
	}

	if _, ok, _ := fx.drafts.Load(context.Background(), leadID.String(), repository.TypeInitial); ok {
		t.Fatal("fresh start left the draft in place")
	}
}

func TestNext_ConcurrentFinishSubmitsOnce(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)
	ctx := context.Background()

	if _, err := fx.svc.Answer(ctx, id, answerValue(answer.Single("health"))); err != nil {
		t.Fatalf("answer sector: %v", err)
	}
	if _, err := fx.svc.Next(ctx, id); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := fx.svc.Next(ctx, id); err != nil {
		t.Fatalf("next past optional: %v", err)
	}
	if _, err := fx.svc.Answer(ctx, id, answerValue(answer.FreeText("todo bien"))); err != nil {
		t.Fatalf("answer details: %v", err)
	}

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Next(ctx, id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one finalize to succeed, got %d", succeeded)
	}
	if len(fx.profiles.applied) != 1 {
		t.Fatalf("profile writer called %d times", len(fx.profiles.applied))
	}
	if len(fx.repo.completed) != 1 {
		t.Fatalf("expected 1 completed row, got %d", len(fx.repo.completed))
	}
}

func TestAnswer_ConcurrentWithStateReads(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				if _, err := fx.svc.Answer(ctx, id, answerValue(answer.Single("health"))); err != nil {
					t.Errorf("answer: %v", err)
				}
				return
			}
			if _, err := fx.svc.State(ctx, id); err != nil {
				t.Errorf("state: %v", err)
			}
		}(i)
	}
	wg.Wait()

	current, err := fx.svc.State(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !current.Responses["sector"].Equal(answer.Single("health")) {
		t.Fatalf("answer lost under concurrent access: %v", current.Responses)
	}
}

func TestStart_AssessmentTypesShareFollowUpPool(t *testing.T) {
	fx := newFixture(t)

	for _, sessionType := range []string{repository.TypeTechnicalAssessment, repository.TypeComplianceDeepDive} {
		state, err := fx.svc.Start(context.Background(), transport.StartSessionRequest{
			LeadID:      uuid.NewString(),
			SessionType: sessionType,
			QuestionIDs: []string{"budget_range"},
		})
		if err != nil {
			t.Fatalf("start %s: %v", sessionType, err)
		}
		if state.SessionType != sessionType {
			t.Fatalf("session type lost: %s", state.SessionType)
		}
		if state.TotalQuestions != 1 || state.CurrentQuestion.ID != "budget_range" {
			t.Fatalf("%s did not draw from the follow-up pool: %+v", sessionType, state)
		}
	}
}

func TestStart_FollowUpSessionUsesRequestedCandidates(t *testing.T) {
	fx := newFixture(t)
	state, err := fx.svc.Start(context.Background(), transport.StartSessionRequest{
		LeadID:      uuid.NewString(),
		SessionType: repository.TypeFollowUpQualified,
		QuestionIDs: []string{"budget_range", "timeline"},
	})
	if err != nil {
		t.Fatalf("start follow-up: %v", err)
	}
	if state.TotalQuestions != 2 {
		t.Fatalf("expected 2 follow-up questions, got %d", state.TotalQuestions)
	}
	if state.CurrentQuestion.ID != "budget_range" {
		t.Fatalf("expected budget_range first, got %s", state.CurrentQuestion.ID)
	}
}

func TestStart_FollowUpRejectsNonCandidateQuestion(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Start(context.Background(), transport.StartSessionRequest{
		LeadID:      uuid.NewString(),
		SessionType: repository.TypeFollowUpQualified,
		QuestionIDs: []string{"sector"},
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnswer_OtherTextCompanion(t *testing.T) {
	fx := newFixture(t)
	state := startInitial(t, fx, uuid.New())
	id := sessionID(t, state)
	ctx := context.Background()

	if _, err := fx.svc.Answer(ctx, id, answerValue(answer.Single("health"))); err != nil {
		t.Fatalf("answer sector: %v", err)
	}
	if _, err := fx.svc.Next(ctx, id); err != nil {
		t.Fatalf("next: %v", err)
	}

	other := "insider threats"
	value := answer.Multi([]string{"phishing"})
	current, err := fx.svc.Answer(ctx, id, transport.AnswerRequest{Answer: &value, OtherText: &other})
	if err != nil {
		t.Fatalf("answer with other: %v", err)
	}
	if !current.Responses["concerns"].Contains("other") {
		t.Fatalf("other not selected: %v", current.Responses["concerns"])
	}
	if current.OtherText["concerns"] != other {
		t.Fatalf("companion text missing: %v", current.OtherText)
	}
}
