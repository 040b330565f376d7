package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashureev/firstprinciples/internal/gateway"
	"github.com/ashureev/firstprinciples/internal/report"
)

// ExitHint is shown after the user asks how to leave.
const ExitHint = "To close the app: close this browser tab/window. " +
	"Then, in your terminal, press Ctrl+C to stop the server."

var (
	// ErrStepUnavailable is returned for a submit whose step has not been reached.
	ErrStepUnavailable = errors.New("wizard: step not available")
	// ErrBusy is returned while another action on the same session is running.
	ErrBusy = errors.New("wizard: session busy")
)

// Advisor is the completion gateway as seen by a session.
type Advisor interface {
	Analyze(ctx context.Context, problem string) gateway.Result
	Challenge(ctx context.Context, assumption, problemContext string) gateway.Result
	Solutions(ctx context.Context, problem, facts, elements string) gateway.Result
}

// Emitter publishes the report of a completed session.
type Emitter interface {
	Emit(ctx context.Context, doc report.Document) report.Receipt
}

// Draft is the raw form input, kept so a rejected form is redisplayed as typed.
type Draft struct {
	Problem    string `json:"problem"`
	Assumption string `json:"assumption"`
	Facts      string `json:"facts"`
	Elements   string `json:"elements"`
}

// Outcome is the result of a submit.
type Outcome struct {
	Advanced bool `json:"advanced"`
	Step     Step `json:"step"`
}

// View is one rendering of a session.
type View struct {
	Step     Step            `json:"step"`
	Working  bool            `json:"working"`
	Record   Record          `json:"record"`
	Draft    Draft           `json:"draft"`
	Report   *report.Receipt `json:"report,omitempty"`
	ExitHint string          `json:"exit_hint,omitempty"`
}

// Session owns the record of one session handle.
type Session struct {
	advisor Advisor
	emitter Emitter
	now     func() time.Time

	// busy is held for the whole of an action, including its gateway call.
	busy sync.Mutex

	mu          sync.Mutex
	working     bool
	record      Record
	draft       Draft
	completions uint64
	emitted     uint64
	receipt     *report.Receipt
	// epoch changes whenever the stored receipt is invalidated.
	epoch uint64
	// emitting is closed when the report being written is stored.
	emitting chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used to timestamp reports.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession creates a session in its initial state. emitter may be nil,
// in which case completing the wizard emits nothing.
func NewSession(advisor Advisor, emitter Emitter, opts ...Option) *Session {
	s := &Session{
		advisor: advisor,
		emitter: emitter,
		now:     time.Now,
		record:  Initial(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record returns a copy of the current record.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Working reports whether a gateway call is in flight.
func (s *Session) Working() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// Step returns the derived active step.
func (s *Session) Step() Step {
	return s.Record().Step()
}

// SubmitProblem accepts the problem statement. It is available from every
// step; resubmitting discards all later inputs and outputs.
func (s *Session) SubmitProblem(ctx context.Context, problem string) (Outcome, error) {
	if !s.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer s.busy.Unlock()

	if out, done := s.gate(StepAwaitingProblem, func(d *Draft) { d.Problem = problem }, problem); done {
		return out, nil
	}

	analysis := OutputFrom(s.advisor.Analyze(ctx, problem))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = false
	s.record = s.record.WithAnalysis(problem, analysis)
	s.draft = Draft{Problem: problem}
	s.receipt = nil
	s.epoch++
	return Outcome{Advanced: true, Step: s.record.Step()}, nil
}

// SubmitAssumption accepts one assumption about the problem.
func (s *Session) SubmitAssumption(ctx context.Context, assumption string) (Outcome, error) {
	if !s.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer s.busy.Unlock()

	if out, done := s.gate(StepAwaitingAssumption, func(d *Draft) { d.Assumption = assumption }, assumption); done {
		if out.Step < StepAwaitingAssumption {
			return out, ErrStepUnavailable
		}
		return out, nil
	}

	problem := s.Record().Problem
	challenge := OutputFrom(s.advisor.Challenge(ctx, assumption, problem))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = false
	s.record = s.record.WithChallenge(assumption, challenge)
	s.receipt = nil
	s.epoch++
	s.draft.Assumption = assumption
	s.draft.Facts = ""
	s.draft.Elements = ""
	return Outcome{Advanced: true, Step: s.record.Step()}, nil
}

// SubmitFactsElements accepts the user's facts and key elements.
func (s *Session) SubmitFactsElements(ctx context.Context, facts, elements string) (Outcome, error) {
	if !s.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer s.busy.Unlock()

	keep := func(d *Draft) {
		d.Facts = facts
		d.Elements = elements
	}
	if out, done := s.gate(StepAwaitingFactsElements, keep, facts, elements); done {
		if out.Step < StepAwaitingFactsElements {
			return out, ErrStepUnavailable
		}
		return out, nil
	}

	problem := s.Record().Problem
	solutions := OutputFrom(s.advisor.Solutions(ctx, problem, facts, elements))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = false
	s.record = s.record.WithSolutions(facts, elements, solutions)
	s.receipt = nil
	s.epoch++
	keep(&s.draft)
	s.completions++
	return Outcome{Advanced: true, Step: s.record.Step()}, nil
}

// gate checks that step has been reached and every field is non-blank.
// When it returns done=true the caller must not advance. Otherwise the
// session is marked working.
func (s *Session) gate(step Step, keep func(*Draft), fields ...string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.record.Step()
	if current < step {
		return Outcome{Step: current}, true
	}

	keep(&s.draft)
	for _, f := range fields {
		if blank(f) {
			return Outcome{Step: current}, true
		}
	}

	s.working = true
	return Outcome{}, false
}

// Reset restores the initial record and forgets drafts and the last report.
func (s *Session) Reset() error {
	if !s.busy.TryLock() {
		return ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = Initial()
	s.draft = Draft{}
	s.receipt = nil
	s.epoch++
	s.emitted = s.completions
	return nil
}

// ShowExit reveals the exit instructions. Only available once complete.
func (s *Session) ShowExit() error {
	if !s.busy.TryLock() {
		return ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.Step() != StepComplete {
		return ErrStepUnavailable
	}
	s.record = s.record.WithExitHint()
	return nil
}

// Observe renders the session. The first observation after a transition
// into StepComplete emits the report; later observations reuse its receipt.
// The report is written without holding the session lock, and observers
// arriving meanwhile wait for it.
func (s *Session) Observe(ctx context.Context) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.emitting != nil {
		wait := s.emitting
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		s.mu.Lock()
		if ctx.Err() != nil {
			break
		}
	}

	if s.record.Step() == StepComplete && s.emitted < s.completions && s.emitting == nil {
		s.emitLocked(ctx)
	}

	step := s.record.Step()
	view := View{
		Step:    step,
		Working: s.working,
		Record:  s.record,
		Draft:   s.draft,
	}
	if step == StepComplete {
		view.Report = s.receipt
		if s.record.ShowExitHint {
			view.ExitHint = ExitHint
		}
	}
	return view
}

// emitLocked publishes the current record. It is called with s.mu held and
// releases it for the duration of Emit. A receipt for a record that was
// reset or replaced meanwhile is dropped.
func (s *Session) emitLocked(ctx context.Context) {
	s.emitted = s.completions
	if s.emitter == nil {
		return
	}

	completions, epoch := s.completions, s.epoch
	doc := s.document()
	done := make(chan struct{})
	s.emitting = done

	s.mu.Unlock()
	receipt := s.emitter.Emit(ctx, doc)
	s.mu.Lock()

	s.emitting = nil
	close(done)
	if s.completions == completions && s.epoch == epoch {
		s.receipt = &receipt
	}
}

// Receipt returns the receipt of the current completion, if emitted.
func (s *Session) Receipt() (report.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil || s.record.Step() != StepComplete {
		return report.Receipt{}, false
	}
	return *s.receipt, true
}

func (s *Session) document() report.Document {
	return report.Document{
		Problem:    s.record.Problem,
		Analysis:   text(s.record.Analysis),
		Assumption: s.record.Assumption,
		Challenge:  text(s.record.Challenge),
		Solutions:  text(s.record.Solutions),
		Degraded:   s.record.DegradedOperations(),
		CreatedAt:  s.now(),
	}
}
