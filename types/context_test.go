package types

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := RequestID(ctx); ok {
		t.Fatal("empty context must not carry a request id")
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	if _, ok := RequestID(WithRequestID(context.Background(), "")); ok {
		t.Fatal("empty request id must be reported as absent")
	}
}
