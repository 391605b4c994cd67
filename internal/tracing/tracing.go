// Package tracing records every structured generation as a trace with a
// child generation span, scored for monitoring.
package tracing

import "context"

// TraceInfo is known before the model is called.
type TraceInfo struct {
	Name          string
	UserID        string
	SessionID     string
	Input         string
	PromptVersion string
	Model         string
}

// Outcome is recorded when the generation finishes.
type Outcome struct {
	Output       any
	Model        string
	FinishReason string
	Warnings     []string
	Sanitized    bool
	Err          error
}

// Generation is an open generation span.
type Generation interface {
	End(Outcome)
}

type Tracer interface {
	StartGeneration(ctx context.Context, info TraceInfo) (context.Context, Generation)
}

// Scores derived from an outcome. Quality is 1 whenever an object was
// produced; JSONConformance additionally drops to 0 when the object had to be
// recovered from wrapped output.
type Scores struct {
	Quality         float64
	JSONConformance float64
}

func ScoreOf(o Outcome) Scores {
	if o.Err != nil || o.Output == nil {
		return Scores{}
	}
	s := Scores{Quality: 1, JSONConformance: 1}
	if o.Sanitized {
		s.JSONConformance = 0
	}
	return s
}

// Noop discards everything. Used when no tracing backend is configured.
type Noop struct{}

func (Noop) StartGeneration(ctx context.Context, _ TraceInfo) (context.Context, Generation) {
	return ctx, noopGeneration{}
}

type noopGeneration struct{}

func (noopGeneration) End(Outcome) {}
