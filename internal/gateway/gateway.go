// Package gateway issues the three templated completion calls used by the
// wizard and converts every provider failure into a tagged result.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Operation identifies one of the gateway's templated calls.
type Operation string

const (
	// OpAnalyze produces the first-principles analysis of a problem.
	OpAnalyze Operation = "analyze"
	// OpChallenge challenges one stated assumption.
	OpChallenge Operation = "challenge"
	// OpSolutions generates unconventional solutions.
	OpSolutions Operation = "solutions"
)

// Params are the fixed sampling parameters of an operation.
type Params struct {
	MaxTokens     int
	Temperature   float64
	FailurePrefix string
}

var operationParams = map[Operation]Params{
	OpAnalyze:   {MaxTokens: 400, Temperature: 0.7, FailurePrefix: "Error analyzing problem"},
	OpChallenge: {MaxTokens: 200, Temperature: 0.8, FailurePrefix: "Error challenging assumption"},
	OpSolutions: {MaxTokens: 400, Temperature: 0.8, FailurePrefix: "Error generating solutions"},
}

// ParamsFor returns the sampling parameters of op.
func ParamsFor(op Operation) Params {
	return operationParams[op]
}

// CompletionRequest is one text-in/text-out call to the provider.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is the external text-completion provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Model() string
}

// Result is the outcome of one gateway operation: either Text or Err is set.
type Result struct {
	Operation Operation
	Text      string
	Err       error
}

// Failed reports whether the call failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Content returns the generated text, or the operation's failure string
// ("Error analyzing problem: <detail>") when the call failed.
func (r Result) Content() string {
	if r.Err == nil {
		return r.Text
	}
	return ParamsFor(r.Operation).FailurePrefix + ": " + r.Err.Error()
}

// Exchange describes a finished call for observers.
type Exchange struct {
	Operation Operation
	Model     string
	Prompt    string
	Result    Result
	Duration  time.Duration
}

// Observer is notified after every call. Implementations must not block.
type Observer interface {
	ObserveExchange(ctx context.Context, ex Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ex Exchange)

// ObserveExchange calls f.
func (f ObserverFunc) ObserveExchange(ctx context.Context, ex Exchange) {
	f(ctx, ex)
}

// Gateway is a stateless façade over a Completer.
type Gateway struct {
	completer Completer
	observers []Observer
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithObserver registers an exchange observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

// WithLogger sets the logger used for failed calls.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gateway over c.
func New(c Completer, opts ...Option) *Gateway {
	g := &Gateway{
		completer: c,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the model identifier of the underlying completer.
func (g *Gateway) Model() string {
	return g.completer.Model()
}

// Analyze runs the first-principles analysis of problem.
func (g *Gateway) Analyze(ctx context.Context, problem string) Result {
	return g.call(ctx, OpAnalyze, AnalyzePrompt(problem))
}

// Challenge challenges assumption in the context of the stated problem.
func (g *Gateway) Challenge(ctx context.Context, assumption, problemContext string) Result {
	return g.call(ctx, OpChallenge, ChallengePrompt(assumption, problemContext))
}

// Solutions generates solutions for problem from the user's facts and elements.
func (g *Gateway) Solutions(ctx context.Context, problem, facts, elements string) Result {
	return g.call(ctx, OpSolutions, SolutionsPrompt(problem, facts, elements))
}

func (g *Gateway) call(ctx context.Context, op Operation, prompt string) Result {
	params := ParamsFor(op)
	start := time.Now()

	text, err := g.completer.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err == nil && text == "" {
		err = &Error{Err: errors.New("empty completion"), Kind: KindEmptyResponse}
	}

	result := Result{Operation: op, Text: text}
	if err != nil {
		result = Result{Operation: op, Err: classify(err)}
		g.logger.Warn("Completion failed",
			"operation", string(op),
			"error_kind", KindOf(result.Err).String(),
			"error", err)
	}

	ex := Exchange{
		Operation: op,
		Model:     g.completer.Model(),
		Prompt:    prompt,
		Result:    result,
		Duration:  time.Since(start),
	}
	for _, o := range g.observers {
		o.ObserveExchange(ctx, ex)
	}

	return result
}
