package calls

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegistrar_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	store := NewMemoryStore()
	store.SetClock(fixedClock(now))
	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now))

	callID, err := reg.Register(ctx, 42, 4242, ActionGate, "+380930063585")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rec, ok, err := store.FindByTargetAndWindow(ctx, "0930063585", 60*time.Second, []Status{StatusPending})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ok {
		t.Fatalf("expected the just-registered record to be found")
	}
	if rec.CallID != callID {
		t.Fatalf("expected call %s, got %s", callID, rec.CallID)
	}
	if rec.TargetNumber != "0930063585" {
		t.Fatalf("target must be stored normalized, got %q", rec.TargetNumber)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
}

func TestStore_UpdateStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, CallRecord{CallID: "c1", TargetNumber: "0930063585", StartTime: time.Now(), Status: StatusPending})

	if err := store.UpdateStatus(ctx, "c1", StatusSuccess, "pbx-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := store.UpdateStatus(ctx, "c1", StatusSuccess, ""); err != nil {
		t.Fatalf("second update must not error: %v", err)
	}
	rec, _ := store.Get("c1")
	if rec.Status != StatusSuccess || rec.ProviderCallID != "pbx-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Missing call id is a no-op, not an error.
	if err := store.UpdateStatus(ctx, "missing", StatusFailed, ""); err != nil {
		t.Fatalf("missing record must be a no-op: %v", err)
	}
}

func TestStore_ResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, CallRecord{CallID: "c1", TargetNumber: "0930063585", StartTime: time.Now(), Status: StatusPending})

	first, err := store.Resolve(ctx, "c1", StatusSuccess, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := store.Resolve(ctx, "c1", StatusBusy, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !first || second {
		t.Fatalf("exactly one resolve must win: first=%v second=%v", first, second)
	}
	rec, _ := store.Get("c1")
	if rec.Status != StatusSuccess {
		t.Fatalf("loser must not overwrite status, got %s", rec.Status)
	}
}

func TestStore_WindowTieBreak(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))

	start := now.Add(-30 * time.Second)
	seed(t, store, CallRecord{CallID: "b", TargetNumber: "0930063585", StartTime: start, Status: StatusPending})
	seed(t, store, CallRecord{CallID: "a", TargetNumber: "0930063585", StartTime: start, Status: StatusPending})
	seed(t, store, CallRecord{CallID: "z", TargetNumber: "0930063585", StartTime: now.Add(-10 * time.Minute), Status: StatusPending})

	rec, ok, err := store.FindByTargetAndWindow(ctx, "0930063585", 60*time.Second, []Status{StatusPending})
	if err != nil || !ok {
		t.Fatalf("expected a match, ok=%v err=%v", ok, err)
	}
	// Equal start times break by smallest call_id.
	if rec.CallID != "a" {
		t.Fatalf("expected deterministic tie-break to pick a, got %s", rec.CallID)
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))

	seed(t, store, CallRecord{CallID: "old", TargetNumber: "0933297777", StartTime: now.Add(-25 * time.Hour), Status: StatusSuccess})
	seed(t, store, CallRecord{CallID: "fresh", TargetNumber: "0933297777", StartTime: now.Add(-time.Minute), Status: StatusPending})

	n, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned record, got %d", n)
	}
	if _, ok := store.Get("old"); ok {
		t.Fatalf("pruned record must be absent")
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatalf("fresh record must survive")
	}
}

func TestStore_MarkTimedOut(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))

	seed(t, store, CallRecord{CallID: "stale", ChatID: 7, TargetNumber: "0933297777", StartTime: now.Add(-20 * time.Minute), Status: StatusPending})
	seed(t, store, CallRecord{CallID: "active", TargetNumber: "0933297777", StartTime: now.Add(-time.Minute), Status: StatusPending})

	timedOut, err := store.MarkTimedOut(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(timedOut) != 1 || timedOut[0].CallID != "stale" {
		t.Fatalf("unexpected timed out set: %+v", timedOut)
	}
	rec, _ := store.Get("stale")
	if rec.Status != StatusTimeout {
		t.Fatalf("expected timeout, got %s", rec.Status)
	}
	rec, _ = store.Get("active")
	if rec.Status != StatusPending {
		t.Fatalf("active record must stay pending, got %s", rec.Status)
	}
}

func seed(t *testing.T, store *MemoryStore, rec CallRecord) {
	t.Helper()
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("seed %s: %v", rec.CallID, err)
	}
}
