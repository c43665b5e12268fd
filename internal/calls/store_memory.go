package calls

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-memory Store for tests and early development.
// It mirrors the PostgresStore semantics, including the single-winner
// Resolve transition.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]*CallRecord
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string]*CallRecord{}, now: time.Now}
}

// SetClock overrides the time source; tests use fixed clocks.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Insert(ctx context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.CallID]; ok {
		return fmt.Errorf("insert call %s: duplicate call_id", rec.CallID)
	}
	cp := rec
	s.recs[rec.CallID] = &cp
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, callID string, status Status, providerCallID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[callID]
	if !ok {
		return nil
	}
	rec.Status = status
	if providerCallID != "" {
		rec.ProviderCallID = providerCallID
	}
	return nil
}

func (s *MemoryStore) Resolve(ctx context.Context, callID string, status Status, providerCallID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[callID]
	if !ok || rec.Status != StatusPending {
		return false, nil
	}
	rec.Status = status
	if providerCallID != "" {
		rec.ProviderCallID = providerCallID
	}
	return true, nil
}

func (s *MemoryStore) FindByProviderID(ctx context.Context, providerCallID string) (CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *CallRecord
	for _, rec := range s.recs {
		if rec.ProviderCallID != providerCallID || providerCallID == "" {
			continue
		}
		if best == nil || rec.StartTime.After(best.StartTime) {
			best = rec
		}
	}
	if best == nil {
		return CallRecord{}, false, nil
	}
	return *best, true, nil
}

func (s *MemoryStore) FindByTargetAndWindow(ctx context.Context, target string, maxAge time.Duration, statuses []Status) (CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)

	allowed := map[Status]bool{}
	for _, st := range statuses {
		allowed[st] = true
	}

	var candidates []*CallRecord
	for _, rec := range s.recs {
		if rec.TargetNumber != target || !allowed[rec.Status] || !rec.StartTime.After(cutoff) {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return CallRecord{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].StartTime.Equal(candidates[j].StartTime) {
			return candidates[i].StartTime.After(candidates[j].StartTime)
		}
		return candidates[i].CallID < candidates[j].CallID
	})
	return *candidates[0], true, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, maxAge time.Duration) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	var out []CallRecord
	for _, rec := range s.recs {
		if rec.StartTime.After(cutoff) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) MarkTimedOut(ctx context.Context, olderThan time.Duration) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var out []CallRecord
	for _, rec := range s.recs {
		if rec.Status == StatusPending && rec.StartTime.Before(cutoff) {
			rec.Status = StatusTimeout
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var n int64
	for id, rec := range s.recs {
		if rec.StartTime.Before(cutoff) {
			delete(s.recs, id)
			n++
		}
	}
	return n, nil
}

// Get returns a record by call_id; test helper.
func (s *MemoryStore) Get(callID string) (CallRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[callID]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}
