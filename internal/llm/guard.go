package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/timeout"

	"topicdesk/internal/core"
	"topicdesk/internal/logger"
)

// CallObserver receives one observation per guarded call.
type CallObserver interface {
	ObserveLLMCall(provider, outcome string, elapsed time.Duration)
}

// GuardOptions configures the deadline and breaker applied to every call.
type GuardOptions struct {
	Provider string
	Timeout  time.Duration

	// BreakerFailures out of BreakerWindow executions opens the circuit. Zero disables the breaker.
	BreakerFailures uint
	BreakerWindow   uint
	BreakerDelay    time.Duration

	Observer CallObserver
}

// Guard bounds each generative call with a deadline and an optional circuit breaker.
// Failures of any kind surface as generation errors. Calls are never retried.
type Guard struct {
	next     Completer
	executor failsafe.Executor[string]
	provider string
	observer CallObserver
	log      *slog.Logger
}

// NewGuard wraps next with the configured policies.
func NewGuard(next Completer, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	log := logger.Get()

	policies := []failsafe.Policy[string]{}
	if opts.BreakerFailures > 0 {
		window := opts.BreakerWindow
		if window < opts.BreakerFailures {
			window = opts.BreakerFailures
		}
		delay := opts.BreakerDelay
		if delay <= 0 {
			delay = 30 * time.Second
		}
		provider := opts.Provider
		cb := circuitbreaker.NewBuilder[string]().
			WithFailureThresholdRatio(opts.BreakerFailures, window).
			WithDelay(delay).
			OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
				log.Warn("LLM circuit breaker state change",
					"provider", provider,
					"from_state", event.OldState,
					"to_state", event.NewState)
			}).
			Build()
		policies = append(policies, cb)
	}
	policies = append(policies, timeout.New[string](opts.Timeout))

	return &Guard{
		next:     next,
		executor: failsafe.With(policies...),
		provider: opts.Provider,
		observer: opts.Observer,
		log:      log,
	}
}

func (g *Guard) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	text, err := g.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[string]) (string, error) {
		return g.next.Complete(exec.Context(), system, prompt)
	})
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			outcome = "circuit_open"
		}
	}
	if g.observer != nil {
		g.observer.ObserveLLMCall(g.provider, outcome, elapsed)
	}

	if err != nil {
		g.log.Warn("Generative call failed", "provider", g.provider, "outcome", outcome, "elapsed", elapsed, "error", err)
		return "", core.NewGenerationError("generative call failed", err)
	}
	return text, nil
}
