// Package flow implements the questionnaire state machine: one interactive
// pass over a bounded, ordered list of questions, with navigation, answer
// buffering, per-question timing and finalization.
//
// The flow holds copies of catalog questions and never mutates them. All
// transitions are driven by discrete user actions; the only asynchronous
// boundary is the completion sink, which the owning service invokes while
// the flow sits in the Submitting state.
package flow

import (
	"time"

	"leadqual_backend/internal/answer"
	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/scoring"
	"leadqual_backend/platform/apperr"
)

// State is the flow's lifecycle position.
type State int

const (
	// StateAnswering means a question at Index() is current.
	StateAnswering State = iota
	// StateSubmitting means finalization is in flight; all navigation and
	// answer transitions are rejected until the sink resolves.
	StateSubmitting
	// StateCompleted means the session finished successfully.
	StateCompleted
)

// OtherValue is the selection value representing a free-text "other" choice.
const OtherValue = "other"

// Metadata describes a finished pass for downstream scoring and analytics.
type Metadata struct {
	CompletionTime      float64            `json:"completionTime"`
	TimePerQuestion     map[string]float64 `json:"timePerQuestion"`
	QuestionsAnswered   int                `json:"questionsAnswered"`
	TextEngagementScore int                `json:"textEngagementScore"`
	IsFollowUp          bool               `json:"isFollowUp"`
}

// Payload is the finalization bundle handed to the completion sink.
type Payload struct {
	Responses answer.Map        `json:"responses"`
	OtherText map[string]string `json:"otherText,omitempty"`
	Metadata  Metadata          `json:"metadata"`
}

// Merged flattens the payload into a single response map: other-text
// companions are stored under "<questionId>_other" as free text.
func (p Payload) Merged() answer.Map {
	merged := make(answer.Map, len(p.Responses)+len(p.OtherText))
	for key, value := range p.Responses {
		merged[key] = value
	}
	for questionID, text := range p.OtherText {
		merged[questionID+"_other"] = answer.FreeText(text)
	}
	return merged
}

// Options configure a new flow.
type Options struct {
	// AllowSkip lets Next move past a required, unanswered question as long
	// as it is not the last one.
	AllowSkip bool
	// IsFollowUp marks the pass as a follow-up session in the metadata.
	IsFollowUp bool
	// EngagementQuestionID names the free-text question whose answer feeds
	// the text engagement score in the finalization metadata.
	EngagementQuestionID string
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Flow is the in-progress session state machine.
type Flow struct {
	questions            []catalog.Question
	allowSkip            bool
	isFollowUp           bool
	engagementQuestionID string
	now                  func() time.Time

	state           State
	index           int
	responses       answer.Map
	otherText       map[string]string
	timePerQuestion map[string]float64
	elapsedBefore   float64
	startedAt       time.Time
	questionShownAt time.Time
}

// Restore is the draft state a resumed flow continues from. Elapsed is the
// seconds already spent in earlier segments of the session.
type Restore struct {
	Responses answer.Map
	OtherText map[string]string
	Index     int
	TimeSpent map[string]float64
	Elapsed   float64
}

// New starts a flow at the first question.
func New(questions []catalog.Question, opts Options) (*Flow, error) {
	return resume(questions, opts, Restore{})
}

// Resume restores a flow from a draft snapshot: the same response buffer,
// question index and timers the user left behind.
func Resume(questions []catalog.Question, opts Options, restore Restore) (*Flow, error) {
	return resume(questions, opts, restore)
}

func resume(questions []catalog.Question, opts Options, restore Restore) (*Flow, error) {
	if len(questions) == 0 {
		return nil, apperr.Validation("session has no questions")
	}
	index := restore.Index
	if index < 0 || index >= len(questions) {
		index = 0
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	f := &Flow{
		questions:            questions,
		allowSkip:            opts.AllowSkip,
		isFollowUp:           opts.IsFollowUp,
		engagementQuestionID: opts.EngagementQuestionID,
		now:                  now,
		state:                StateAnswering,
		index:                index,
		responses:            make(answer.Map, len(questions)),
		otherText:            make(map[string]string),
		timePerQuestion:      make(map[string]float64, len(questions)),
	}
	for key, value := range restore.Responses {
		f.responses[key] = value
	}
	for key, value := range restore.OtherText {
		f.otherText[key] = value
	}
	for key, value := range restore.TimeSpent {
		f.timePerQuestion[key] = value
	}
	if restore.Elapsed > 0 {
		f.elapsedBefore = restore.Elapsed
	}
	f.startedAt = f.now()
	f.questionShownAt = f.startedAt
	return f, nil
}

// State returns the lifecycle position.
func (f *Flow) State() State {
	return f.state
}

// Index returns the current question index.
func (f *Flow) Index() int {
	return f.index
}

// Total returns the number of questions in the session.
func (f *Flow) Total() int {
	return len(f.questions)
}

// Current returns the current question.
func (f *Flow) Current() catalog.Question {
	return f.questions[f.index]
}

// Responses returns a copy of the answer buffer.
func (f *Flow) Responses() answer.Map {
	copied := make(answer.Map, len(f.responses))
	for key, value := range f.responses {
		copied[key] = value
	}
	return copied
}

// OtherText returns a copy of the "other" companion texts.
func (f *Flow) OtherText() map[string]string {
	copied := make(map[string]string, len(f.otherText))
	for key, value := range f.otherText {
		copied[key] = value
	}
	return copied
}

// TimePerQuestion returns a copy of the recorded per-question timings.
func (f *Flow) TimePerQuestion() map[string]float64 {
	copied := make(map[string]float64, len(f.timePerQuestion))
	for key, value := range f.timePerQuestion {
		copied[key] = value
	}
	return copied
}

// Elapsed returns the seconds spent in the session so far, including time
// accumulated before a resume.
func (f *Flow) Elapsed() float64 {
	return f.elapsedBefore + f.now().Sub(f.startedAt).Seconds()
}

// Answer records a value for the current question. For multiple choice with
// an "other" companion, deselecting "other" clears the companion text.
func (f *Flow) Answer(value answer.Value) error {
	if err := f.requireAnswering(); err != nil {
		return err
	}

	question := f.Current()
	f.responses[question.ID] = value

	if question.Type == catalog.MultipleChoice && question.AllowOther && !value.Contains(OtherValue) {
		delete(f.otherText, question.ID)
	}
	return nil
}

// AnswerOther records the companion text for an "other" selection on the
// current question. A non-empty text implicitly selects "other" when it is
// not yet part of the multi-select buffer.
func (f *Flow) AnswerOther(text string) error {
	if err := f.requireAnswering(); err != nil {
		return err
	}

	question := f.Current()
	if !question.AllowOther {
		return apperr.Validation("question does not accept an other answer")
	}

	f.otherText[question.ID] = text

	if question.Type == catalog.MultipleChoice && text != "" {
		current := f.responses[question.ID]
		if !current.Contains(OtherValue) {
			f.responses[question.ID] = answer.Multi(append(current.Selections(), OtherValue))
		}
	}
	return nil
}

// Next advances to the following question, or transitions to Submitting on
// the last one. Blocked with a validation error when the current question is
// required and unanswered, unless skipping is enabled and the question is
// not the last; the index is left unchanged on a blocked Next. Elapsed time
// for the question is recorded before advancing, last measurement per id
// wins.
func (f *Flow) Next() (finishing bool, err error) {
	if err := f.requireAnswering(); err != nil {
		return false, err
	}

	question := f.Current()
	if question.Required && !f.isAnswered(question.ID) {
		if !f.allowSkip || f.isLast() {
			return false, apperr.Validation("answer required before continuing")
		}
	}

	f.recordElapsed(question.ID)

	if f.isLast() {
		f.state = StateSubmitting
		return true, nil
	}

	f.index++
	f.questionShownAt = f.now()
	return false, nil
}

// Skip advances past a non-required, non-last question without an answer.
func (f *Flow) Skip() error {
	if err := f.requireAnswering(); err != nil {
		return err
	}

	question := f.Current()
	if question.Required {
		return apperr.Validation("required question cannot be skipped")
	}
	if f.isLast() {
		return apperr.Validation("last question cannot be skipped")
	}

	f.recordElapsed(question.ID)
	f.index++
	f.questionShownAt = f.now()
	return nil
}

// Back moves to the previous question, floored at the first. The response
// buffer is never touched.
func (f *Flow) Back() error {
	if err := f.requireAnswering(); err != nil {
		return err
	}

	f.recordElapsed(f.Current().ID)
	if f.index > 0 {
		f.index--
	}
	f.questionShownAt = f.now()
	return nil
}

// Payload builds the finalization bundle. Valid only while Submitting.
func (f *Flow) Payload() (Payload, error) {
	if f.state != StateSubmitting {
		return Payload{}, apperr.Conflict("session is not being submitted")
	}

	var engagementText string
	if value, ok := f.responses[f.engagementQuestionID]; ok {
		engagementText = value.Text()
	}

	return Payload{
		Responses: f.Responses(),
		OtherText: f.OtherText(),
		Metadata: Metadata{
			CompletionTime:      f.Elapsed(),
			TimePerQuestion:     f.TimePerQuestion(),
			QuestionsAnswered:   len(f.responses),
			TextEngagementScore: scoring.TextEngagementScore(engagementText),
			IsFollowUp:          f.isFollowUp,
		},
	}, nil
}

// CompleteSucceeded marks the session finished after the sink accepted the
// payload.
func (f *Flow) CompleteSucceeded() {
	if f.state == StateSubmitting {
		f.state = StateCompleted
	}
}

// CompleteFailed rolls a failed submission back to the last question so the
// user can retry. The answer buffer is preserved untouched.
func (f *Flow) CompleteFailed() {
	if f.state == StateSubmitting {
		f.state = StateAnswering
		f.index = len(f.questions) - 1
		f.questionShownAt = f.now()
	}
}

func (f *Flow) requireAnswering() error {
	switch f.state {
	case StateSubmitting:
		return apperr.Conflict("submission in progress")
	case StateCompleted:
		return apperr.Conflict("session already completed")
	default:
		return nil
	}
}

// isAnswered follows key existence, matching the completeness semantics:
// an explicitly empty value still counts as answered.
func (f *Flow) isAnswered(questionID string) bool {
	_, ok := f.responses[questionID]
	return ok
}

func (f *Flow) isLast() bool {
	return f.index == len(f.questions)-1
}

func (f *Flow) recordElapsed(questionID string) {
	f.timePerQuestion[questionID] = f.now().Sub(f.questionShownAt).Seconds()
}
