package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTimeout_ExpiredDeadlineAbandonsPendingWork(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	got := h.executeCtx(t, ctx, `{ variant(id: "v1") { name } }`)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{{
			Message: "execution deadline exceeded",
			Path:    Path{"variant"},
			Kind:    KindTimeout,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if n := h.log.count("Query.variant"); n != 0 {
		t.Fatalf("Query.variant fetched %d times after deadline, want 0", n)
	}
}

func TestTimeout_CanceledContextUsesCancellationMessage(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := h.executeCtx(t, ctx, `{ requiredVariant(id: "v1") { name } }`)

	want := &Result{
		Data: nil,
		Errors: []Error{{
			Message: "query execution canceled",
			Path:    Path{"requiredVariant"},
			Kind:    KindTimeout,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeout_MidFlightCancellationStopsFurtherDepths(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.onSourceFetch = cancel

	got := h.executeCtx(t, ctx, `{
		variant(id: "v1") { source { name } alleles { source { id } } }
	}`)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{
			{Message: "query execution canceled", Path: Path{"variant", "source"}, Kind: KindTimeout},
			{Message: "query execution canceled", Path: Path{"variant", "alleles"}, Kind: KindTimeout},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	// Groups already in flight at the cancellation depth ran once; their
	// results were discarded and nothing deeper was scheduled.
	if n := h.log.count("Variant.source"); n != 1 {
		t.Fatalf("Variant.source fetched %d times, want 1", n)
	}
	if n := h.log.count("Variant.alleles"); n != 1 {
		t.Fatalf("Variant.alleles fetched %d times, want 1", n)
	}
	if n := h.log.count("Allele.source"); n != 0 {
		t.Fatalf("Allele.source fetched %d times, want 0", n)
	}
}
