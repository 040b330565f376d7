// Package wizard implements the four-step first principles session: which
// step is active, what input advances it, and how the record resets.
package wizard

import (
	"fmt"
	"strings"

	"github.com/ashureev/firstprinciples/internal/gateway"
)

// Step is the active wizard step. It is derived from a Record, never stored.
type Step int

const (
	// StepAwaitingProblem asks for the problem statement.
	StepAwaitingProblem Step = iota
	// StepAwaitingAssumption shows the analysis and asks for one assumption.
	StepAwaitingAssumption
	// StepAwaitingFactsElements shows the challenge and asks for facts and elements.
	StepAwaitingFactsElements
	// StepComplete shows every output and emits the report.
	StepComplete
)

var stepNames = [...]string{
	StepAwaitingProblem:       "awaiting_problem",
	StepAwaitingAssumption:    "awaiting_assumption",
	StepAwaitingFactsElements: "awaiting_facts_elements",
	StepComplete:              "complete",
}

// String returns the step's wire name.
func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(text []byte) error {
	for i, name := range stepNames {
		if name == string(text) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("wizard: unknown step %q", text)
}

// Output is generated text. Degraded marks a gateway failure string stored
// in place of a real answer.
type Output struct {
	Text     string `json:"text"`
	Degraded bool   `json:"degraded,omitempty"`
}

// OutputFrom converts a gateway result into an Output.
func OutputFrom(res gateway.Result) *Output {
	return &Output{Text: res.Content(), Degraded: res.Failed()}
}

// Record holds every input and output of one wizard pass.
// A nil Analysis, Challenge or Solutions means the output is absent.
type Record struct {
	Problem      string  `json:"problem"`
	Analysis     *Output `json:"analysis,omitempty"`
	Assumption   string  `json:"assumption"`
	Challenge    *Output `json:"challenge,omitempty"`
	Facts        string  `json:"facts"`
	Elements     string  `json:"elements"`
	Solutions    *Output `json:"solutions,omitempty"`
	ShowExitHint bool    `json:"show_exit_hint"`
}

// Initial returns the empty record a session starts from.
func Initial() Record {
	return Record{}
}

// Step derives the active step from which outputs are present.
func (r Record) Step() Step {
	switch {
	case r.Analysis == nil:
		return StepAwaitingProblem
	case r.Challenge == nil:
		return StepAwaitingAssumption
	case r.Solutions == nil:
		return StepAwaitingFactsElements
	default:
		return StepComplete
	}
}

// WithAnalysis stores a new problem and its analysis and clears everything
// downstream of it.
func (r Record) WithAnalysis(problem string, analysis *Output) Record {
	return Record{
		Problem:  problem,
		Analysis: analysis,
	}
}

// WithChallenge stores an assumption and its challenge and clears the
// facts, elements, solutions and exit hint.
func (r Record) WithChallenge(assumption string, challenge *Output) Record {
	r.Assumption = assumption
	r.Challenge = challenge
	r.Facts = ""
	r.Elements = ""
	r.Solutions = nil
	r.ShowExitHint = false
	return r
}

// WithSolutions stores the facts, elements and generated solutions and
// hides the exit hint again.
func (r Record) WithSolutions(facts, elements string, solutions *Output) Record {
	r.Facts = facts
	r.Elements = elements
	r.Solutions = solutions
	r.ShowExitHint = false
	return r
}

// WithExitHint marks the exit instructions as visible.
func (r Record) WithExitHint() Record {
	r.ShowExitHint = true
	return r
}

// DegradedOperations lists the operations whose stored text is a failure string.
func (r Record) DegradedOperations() []string {
	var ops []string
	if r.Analysis != nil && r.Analysis.Degraded {
		ops = append(ops, string(gateway.OpAnalyze))
	}
	if r.Challenge != nil && r.Challenge.Degraded {
		ops = append(ops, string(gateway.OpChallenge))
	}
	if r.Solutions != nil && r.Solutions.Degraded {
		ops = append(ops, string(gateway.OpSolutions))
	}
	return ops
}

// Equal reports whether two records hold the same values.
func (r Record) Equal(other Record) bool {
	return r.Problem == other.Problem &&
		outputEqual(r.Analysis, other.Analysis) &&
		r.Assumption == other.Assumption &&
		outputEqual(r.Challenge, other.Challenge) &&
		r.Facts == other.Facts &&
		r.Elements == other.Elements &&
		outputEqual(r.Solutions, other.Solutions) &&
		r.ShowExitHint == other.ShowExitHint
}

func outputEqual(a, b *Output) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func text(o *Output) string {
	if o == nil {
		return ""
	}
	return o.Text
}
