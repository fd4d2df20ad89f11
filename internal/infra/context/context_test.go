package context_test

import (
	"context"
	"testing"

	"github.com/mkrupp/pantry/internal/domain"
	context_ "github.com/mkrupp/pantry/internal/infra/context"
)

func TestIdentityFromContext(t *testing.T) {
	t.Parallel()

	if _, ok := context_.IdentityFromContext(context.Background()); ok {
		t.Error("IdentityFromContext() on empty context reported an identity")
	}

	ctx := context_.WithIdentity(context.Background(), domain.Identity{})
	if _, ok := context_.IdentityFromContext(ctx); ok {
		t.Error("IdentityFromContext() accepted an identity without ID")
	}

	want := domain.Identity{ID: "u1", DisplayName: "Ada"}
	ctx = context_.WithIdentity(context.Background(), want)

	got, ok := context_.IdentityFromContext(ctx)
	if !ok || got != want {
		t.Errorf("IdentityFromContext() = %+v, %v, want %+v, true", got, ok, want)
	}
}

func TestTraceIDFromContext(t *testing.T) {
	t.Parallel()

	ctx := context_.WithTraceID(context.Background(), "abc")

	got, ok := context_.TraceIDFromContext(ctx)
	if !ok || got != "abc" {
		t.Errorf("TraceIDFromContext() = %q, %v, want abc, true", got, ok)
	}

	if _, ok := context_.TraceIDFromContext(context_.WithTraceID(context.Background(), "")); ok {
		t.Error("TraceIDFromContext() accepted an empty trace ID")
	}
}
