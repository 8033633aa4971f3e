// Package service orchestrates questionnaire sessions: it owns the live
// flow state machines, persists drafts and completed sessions, and hands
// finished payloads to the profile manager.
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
	"leadqual_backend/internal/questionnaire/draft"
	"leadqual_backend/internal/questionnaire/flow"
	"leadqual_backend/internal/questionnaire/repository"
	"leadqual_backend/internal/questionnaire/transport"
	"leadqual_backend/platform/apperr"
	"leadqual_backend/platform/config"
	"leadqual_backend/platform/logger"
)

// CompletionResult is what the profile manager reports back after absorbing
// a finished session.
type CompletionResult struct {
	LeadScore    int
	LeadCategory string
	Completeness int
}

// ProfileWriter is the completion sink. A failure here rolls the session
// back so the client can retry the submission.
type ProfileWriter interface {
	ApplyCompletion(ctx context.Context, leadID uuid.UUID, sessionType string, payload flow.Payload) (CompletionResult, error)
}

// SessionRepository persists session rows.
type SessionRepository interface {
	CreateSession(ctx context.Context, params repository.CreateSessionParams) (repository.Session, error)
	CompleteSession(ctx context.Context, sessionID uuid.UUID, payload flow.Payload, completedAt time.Time) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (repository.Session, error)
	ListSessionsByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Session, error)
}

// activeSession pairs a flow with its identity. The mutex serializes every
// request touching the flow, so two concurrent Next calls on the last
// question cannot both finalize.
type activeSession struct {
	id          uuid.UUID
	leadID      uuid.UUID
	sessionType string
	channel     string

	mu   sync.Mutex
	flow *flow.Flow
}

// Service owns the in-flight sessions. Completed and abandoned sessions
// leave the registry; drafts in the store let abandoned ones resume later.
type Service struct {
	cat      *catalog.Catalog
	repo     SessionRepository
	drafts   draft.Store
	profiles ProfileWriter
	bus      events.Bus
	log      *logger.Logger
	cfg      config.QuestionnaireConfig
	now      func() time.Time

	engagementQuestionID string

	mu     sync.Mutex
	active map[uuid.UUID]*activeSession
}

func New(cat *catalog.Catalog, repo SessionRepository, drafts draft.Store, profiles ProfileWriter, bus events.Bus, log *logger.Logger, cfg config.QuestionnaireConfig) *Service {
	return &Service{
		cat:                  cat,
		repo:                 repo,
		drafts:               drafts,
		profiles:             profiles,
		bus:                  bus,
		log:                  log,
		cfg:                  cfg,
		now:                  time.Now,
		engagementQuestionID: cat.EngagementQuestionID(),
		active:               make(map[uuid.UUID]*activeSession),
	}
}

// Start opens a session for the lead. When a draft snapshot exists for the
// same lead and session type, the session resumes from it instead of
// starting over, unless the request signals a fresh start, which deletes the
// snapshot first.
func (s *Service) Start(ctx context.Context, req transport.StartSessionRequest) (transport.SessionStateResponse, error) {
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		return transport.SessionStateResponse{}, apperr.BadRequest("invalid lead id")
	}

	questions, err := s.sessionQuestions(req.SessionType, req.QuestionIDs)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}

	opts := flow.Options{
		AllowSkip:            s.cfg.GetAllowSkip(),
		IsFollowUp:           repository.IsFollowUpType(req.SessionType),
		EngagementQuestionID: s.engagementQuestionID,
		Now:                  s.now,
	}

	var (
		f       *flow.Flow
		resumed bool
	)
	if req.StartFresh {
		if err := s.drafts.Clear(ctx, leadID.String(), req.SessionType); err != nil {
			s.log.DraftStoreError("clear", leadID.String(), err)
		}
		f, err = flow.New(questions, opts)
	} else {
		snapshot, found, loadErr := s.drafts.Load(ctx, leadID.String(), req.SessionType)
		if loadErr != nil {
			// A broken draft store only costs resumability.
			s.log.DraftStoreError("load", leadID.String(), loadErr)
		}
		if found && loadErr == nil {
			f, err = flow.Resume(questions, opts, flow.Restore{
				Responses: snapshot.Responses,
				OtherText: snapshot.OtherText,
				Index:     snapshot.CurrentIndex,
				TimeSpent: snapshot.TimeSpent,
				Elapsed:   snapshot.Elapsed,
			})
			resumed = true
		} else {
			f, err = flow.New(questions, opts)
		}
	}
	if err != nil {
		return transport.SessionStateResponse{}, err
	}

	session, err := s.repo.CreateSession(ctx, repository.CreateSessionParams{
		LeadID:      leadID,
		SessionType: req.SessionType,
		Channel:     req.Channel,
	})
	if err != nil {
		return transport.SessionStateResponse{}, apperr.Wrap(apperr.KindInternal, "could not start session", err)
	}

	active := &activeSession{
		id:          session.ID,
		leadID:      leadID,
		sessionType: req.SessionType,
		channel:     req.Channel,
		flow:        f,
	}

	// State is read before the session becomes visible to other requests.
	state := s.stateOf(active)
	state.Resumed = resumed

	s.mu.Lock()
	s.active[session.ID] = active
	s.mu.Unlock()

	s.log.SessionEvent("session_started", leadID.String(), req.SessionType, f.Index())
	return state, nil
}

// sessionQuestions builds the question list for a session. Initial sessions
// take the catalog's main questions up to the configured cap; the follow-up
// session types take the explicitly requested follow-up candidates, capped
// too.
func (s *Service) sessionQuestions(sessionType string, questionIDs []string) ([]catalog.Question, error) {
	switch sessionType {
	case repository.TypeInitial:
		var questions []catalog.Question
		max := s.cfg.GetMaxQuestionsPerSession()
		for _, q := range s.cat.SessionQuestions(0) {
			if q.FollowUp {
				continue
			}
			questions = append(questions, q)
			if max > 0 && len(questions) == max {
				break
			}
		}
		return questions, nil

	case repository.TypeFollowUpQualified, repository.TypeTechnicalAssessment, repository.TypeComplianceDeepDive:
		var questions []catalog.Question
		max := s.cfg.GetFollowUpMaxQuestions()
		for _, id := range questionIDs {
			q, ok := s.cat.Question(id)
			if !ok || !q.FollowUp {
				return nil, apperr.Validation("unknown follow-up question: " + id)
			}
			questions = append(questions, q)
			if max > 0 && len(questions) == max {
				break
			}
		}
		if len(questions) == 0 {
			return nil, apperr.Validation("follow-up session needs at least one question")
		}
		return questions, nil

	default:
		return nil, apperr.Validation("unknown session type: " + sessionType)
	}
}

// Answer records an answer and, optionally, the "other" companion text for
// the current question.
func (s *Service) Answer(ctx context.Context, sessionID uuid.UUID, req transport.AnswerRequest) (transport.SessionStateResponse, error) {
	active, err := s.session(sessionID)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	active.mu.Lock()
	defer active.mu.Unlock()

	if req.Answer != nil {
		if err := validateAnswer(active.flow.Current(), *req.Answer); err != nil {
			return transport.SessionStateResponse{}, err
		}
		if err := active.flow.Answer(*req.Answer); err != nil {
			return transport.SessionStateResponse{}, err
		}
	}
	if req.OtherText != nil {
		if err := active.flow.AnswerOther(*req.OtherText); err != nil {
			return transport.SessionStateResponse{}, err
		}
	}

	s.saveDraft(active)
	return s.stateOf(active), nil
}

// validateAnswer rejects values that do not fit the question shape before
// they reach the buffer.
func validateAnswer(q catalog.Question, value answer.Value) error {
	switch q.Type {
	case catalog.SingleChoice:
		if value.Kind() != answer.KindSingle {
			return apperr.Validation("question expects a single choice")
		}
	case catalog.MultipleChoice:
		if value.Kind() != answer.KindMulti {
			return apperr.Validation("question expects a list of choices")
		}
	case catalog.Text, catalog.TextArea:
		if value.Kind() != answer.KindText {
			return apperr.Validation("question expects free text")
		}
		if q.MaxLength > 0 && len(value.Text()) > q.MaxLength {
			return apperr.Validation("answer exceeds maximum length")
		}
	}
	return nil
}

// Next advances the session. On the last question it finalizes: the payload
// goes to the profile manager and the session row, the draft is cleared and
// the completion event published. A sink failure rolls the flow back with
// the buffer intact so the client can retry.
func (s *Service) Next(ctx context.Context, sessionID uuid.UUID) (transport.SessionStateResponse, error) {
	active, err := s.session(sessionID)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	active.mu.Lock()
	defer active.mu.Unlock()

	finishing, err := active.flow.Next()
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	if !finishing {
		s.saveDraft(active)
		return s.stateOf(active), nil
	}

	return s.finalize(ctx, active)
}

func (s *Service) finalize(ctx context.Context, active *activeSession) (transport.SessionStateResponse, error) {
	payload, err := active.flow.Payload()
	if err != nil {
		return transport.SessionStateResponse{}, err
	}

	result, err := s.profiles.ApplyCompletion(ctx, active.leadID, active.sessionType, payload)
	if err != nil {
		active.flow.CompleteFailed()
		s.log.SessionEvent("session_submit_failed", active.leadID.String(), active.sessionType, active.flow.Index())
		return transport.SessionStateResponse{}, apperr.Wrap(apperr.KindInternal, "could not submit session", err)
	}

	completedAt := s.now()
	if err := s.repo.CompleteSession(ctx, active.id, payload, completedAt); err != nil {
		// The profile already absorbed the payload; losing the session row
		// is logged but does not fail the submission.
		s.log.DatabaseError("complete_session", err)
	}

	active.flow.CompleteSucceeded()

	s.mu.Lock()
	delete(s.active, active.id)
	s.mu.Unlock()

	if err := s.drafts.Clear(context.WithoutCancel(ctx), active.leadID.String(), active.sessionType); err != nil {
		s.log.DraftStoreError("clear", active.leadID.String(), err)
	}

	s.bus.Publish(ctx, events.QuestionnaireCompleted{
		BaseEvent:         events.NewBaseEvent(),
		SessionID:         active.id,
		LeadID:            active.leadID,
		SessionType:       active.sessionType,
		QuestionsAnswered: payload.Metadata.QuestionsAnswered,
		CompletionTime:    payload.Metadata.CompletionTime,
		IsFollowUp:        payload.Metadata.IsFollowUp,
	})

	s.log.SessionEvent("session_completed", active.leadID.String(), active.sessionType, active.flow.Index())

	state := s.stateOf(active)
	state.Completion = &transport.CompletionView{
		LeadScore:         result.LeadScore,
		LeadCategory:      result.LeadCategory,
		Completeness:      result.Completeness,
		QuestionsAnswered: payload.Metadata.QuestionsAnswered,
		CompletionTime:    payload.Metadata.CompletionTime,
	}
	return state, nil
}

// Back steps to the previous question.
func (s *Service) Back(ctx context.Context, sessionID uuid.UUID) (transport.SessionStateResponse, error) {
	active, err := s.session(sessionID)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	active.mu.Lock()
	defer active.mu.Unlock()

	if err := active.flow.Back(); err != nil {
		return transport.SessionStateResponse{}, err
	}
	s.saveDraft(active)
	return s.stateOf(active), nil
}

// Skip passes over a non-required question without answering.
func (s *Service) Skip(ctx context.Context, sessionID uuid.UUID) (transport.SessionStateResponse, error) {
	active, err := s.session(sessionID)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	active.mu.Lock()
	defer active.mu.Unlock()

	if err := active.flow.Skip(); err != nil {
		return transport.SessionStateResponse{}, err
	}
	s.saveDraft(active)
	return s.stateOf(active), nil
}

// State reports the current session state without changing it.
func (s *Service) State(_ context.Context, sessionID uuid.UUID) (transport.SessionStateResponse, error) {
	active, err := s.session(sessionID)
	if err != nil {
		return transport.SessionStateResponse{}, err
	}
	active.mu.Lock()
	defer active.mu.Unlock()

	return s.stateOf(active), nil
}

func (s *Service) session(sessionID uuid.UUID) (*activeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, ok := s.active[sessionID]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	return active, nil
}

// saveDraft snapshots the session in the background. Draft persistence is
// best effort: failures are logged and never surface to the client.
func (s *Service) saveDraft(active *activeSession) {
	snapshot := draft.Snapshot{
		LeadID:       active.leadID.String(),
		SessionType:  active.sessionType,
		Responses:    active.flow.Responses(),
		OtherText:    active.flow.OtherText(),
		CurrentIndex: active.flow.Index(),
		TimeSpent:    active.flow.TimePerQuestion(),
		Elapsed:      active.flow.Elapsed(),
		SavedAt:      s.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.drafts.Save(ctx, snapshot); err != nil {
			s.log.DraftStoreError("save", snapshot.LeadID, err)
		}
	}()
}

func (s *Service) stateOf(active *activeSession) transport.SessionStateResponse {
	state := transport.SessionStateResponse{
		SessionID:      active.id.String(),
		LeadID:         active.leadID.String(),
		SessionType:    active.sessionType,
		Status:         statusLabel(active.flow.State()),
		QuestionIndex:  active.flow.Index(),
		TotalQuestions: active.flow.Total(),
		Responses:      active.flow.Responses(),
		OtherText:      active.flow.OtherText(),
	}
	if active.flow.State() == flow.StateAnswering {
		view := transport.ToQuestionView(active.flow.Current())
		state.CurrentQuestion = &view
	}
	return state
}

func statusLabel(state flow.State) string {
	switch state {
	case flow.StateSubmitting:
		return "submitting"
	case flow.StateCompleted:
		return "completed"
	default:
		return "answering"
	}
}

// Sessions returns the lead's persisted session history, newest first.
func (s *Service) Sessions(ctx context.Context, leadID uuid.UUID) ([]repository.Session, error) {
	sessions, err := s.repo.ListSessionsByLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("no sessions for lead")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "could not list sessions", err)
	}
	return sessions, nil
}
