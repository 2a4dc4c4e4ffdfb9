package llm

import (
	"context"
	"time"
)

// CallInfo identifies one generate call.
type CallInfo struct {
	Vendor    Vendor
	Model     string
	RequestID string
}

// CallOutcome summarizes a finished generate call.
type CallOutcome struct {
	Success      bool
	ErrorKind    string
	ErrorReason  string
	Attempts     int
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Status is the low-cardinality label used by metrics backends.
func (o CallOutcome) Status() string {
	if o.Success {
		return "success"
	}
	if o.ErrorReason != "" {
		return o.ErrorReason
	}
	if o.ErrorKind != "" {
		return o.ErrorKind
	}
	return "error"
}

// Observer receives call lifecycle events. Begin may return a derived
// context (for example one carrying a span) that is used for the call.
type Observer interface {
	Begin(ctx context.Context, info CallInfo) context.Context
	End(ctx context.Context, info CallInfo, outcome CallOutcome)
}

// Observers fans events out to several observers, in order.
type Observers []Observer

func (os Observers) Begin(ctx context.Context, info CallInfo) context.Context {
	for _, o := range os {
		ctx = o.Begin(ctx, info)
	}
	return ctx
}

func (os Observers) End(ctx context.Context, info CallInfo, outcome CallOutcome) {
	for _, o := range os {
		o.End(ctx, info, outcome)
	}
}
