package reqid

import (
	"context"
	"testing"
)

func TestNewContextStoresID(t *testing.T) {
	ctx, id := NewContext(context.Background())
	if id == "" {
		t.Fatal("expected a non-empty request ID")
	}
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("FromContext = (%q, %v), want (%q, true)", got, ok, id)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	if id, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no request ID, got %q", id)
	}
}
