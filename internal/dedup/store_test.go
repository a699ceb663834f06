package dedup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginClaimsOnlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh, err := s.Begin(ctx, "call-1")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !fresh {
		t.Fatal("first Begin reported duplicate")
	}

	fresh, err = s.Begin(ctx, "call-1")
	if err != nil {
		t.Fatalf("second Begin: %v", err)
	}
	if fresh {
		t.Fatal("in-flight call id claimed twice")
	}
}

func TestCompletedCallStaysClaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, "call-2"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Complete(ctx, "call-2", "9198765", 42, "lead"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	fresh, err := s.Begin(ctx, "call-2")
	if err != nil {
		t.Fatalf("Begin after Complete: %v", err)
	}
	if fresh {
		t.Fatal("completed call id was reclaimed; duplicate note would be posted")
	}

	e, err := s.Get(ctx, "call-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Status != StatusDone || e.EntityID != 42 || e.EntityKind != "lead" || e.Phone != "9198765" {
		t.Errorf("entry = %+v", e)
	}
}

func TestFailedCallIsReclaimable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, "call-3"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Fail(ctx, "call-3", "crm resolution failed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	fresh, err := s.Begin(ctx, "call-3")
	if err != nil {
		t.Fatalf("Begin after Fail: %v", err)
	}
	if !fresh {
		t.Fatal("failed call id not reclaimable on redelivery")
	}

	e, err := s.Get(ctx, "call-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Status != StatusProcessing || e.Error != "" {
		t.Errorf("reclaimed entry = %+v, want clean processing row", e)
	}
}

func TestGetUnknownCall(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "never-seen")
	if !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("err = %v, want ErrUnknownCall", err)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Begin(ctx, id); err != nil {
			t.Fatalf("Begin %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].CallID != "c" || entries[1].CallID != "b" {
		t.Errorf("order = [%s %s], want [c b]", entries[0].CallID, entries[1].CallID)
	}
}

func TestPruneKeepsInFlightRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, "old-done"); err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(ctx, "old-done", "1", 1, "lead"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(ctx, "in-flight"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	n, err := s.PruneOlderThan(ctx, 0)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, err := s.Get(ctx, "in-flight"); err != nil {
		t.Errorf("in-flight row pruned: %v", err)
	}
}
