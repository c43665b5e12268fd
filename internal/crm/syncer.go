package crm

import (
	"context"
	"time"

	"clinic-concierge/internal/directory"
	"clinic-concierge/internal/phone"
	"clinic-concierge/pkg/logger"
)

const pageSize = 100

// Lister is the slice of the CRM client the syncer needs; tests substitute
// a fake.
type Lister interface {
	ListClients(ctx context.Context, page, size int, createdStart, createdEnd time.Time) (Page, error)
}

// Syncer mirrors CRM clients into the local directory. The first run walks
// the whole client book; later runs only fetch the last day of signups.
type Syncer struct {
	crm      Lister
	store    directory.Store
	interval time.Duration
	now      func() time.Time
}

func NewSyncer(crm Lister, store directory.Store, interval time.Duration) *Syncer {
	return &Syncer{crm: crm, store: store, interval: interval, now: time.Now}
}

// Sync runs a full sync when the local directory is empty, an incremental
// one otherwise. Returns the number of records written.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	n, err := s.store.CountClients(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return s.SyncAll(ctx)
	}
	return s.SyncRecent(ctx)
}

// SyncAll walks every page of the company client book.
func (s *Syncer) SyncAll(ctx context.Context) (int, error) {
	return s.walk(ctx, time.Time{}, time.Time{})
}

// SyncRecent fetches clients created in the last 24 hours.
func (s *Syncer) SyncRecent(ctx context.Context) (int, error) {
	now := s.now().UTC()
	return s.walk(ctx, now.Add(-24*time.Hour), now)
}

func (s *Syncer) walk(ctx context.Context, createdStart, createdEnd time.Time) (int, error) {
	log := logger.From(ctx)
	total := 0

	for page := 0; ; page++ {
		p, err := s.crm.ListClients(ctx, page, pageSize, createdStart, createdEnd)
		if err != nil {
			return total, err
		}
		if len(p.Clients) == 0 {
			break
		}

		batch := make([]directory.Client, 0, len(p.Clients))
		for _, c := range p.Clients {
			// Records without an id or phone cannot authorize anyone.
			if c.ID == "" || c.Phone == "" {
				log.Warn("skipping client without id or phone", "client_id", c.ID)
				continue
			}
			batch = append(batch, directory.Client{
				ID:        c.ID,
				FirstName: c.FirstName,
				LastName:  c.LastName,
				Phone:     phone.Normalize(c.Phone),
			})
		}
		// One transaction per page keeps a mid-page failure from leaving
		// a partially written page behind.
		if err := s.store.UpsertClients(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)

		if page+1 >= p.TotalPages {
			break
		}
	}

	log.Info("crm sync finished", "written", total, "incremental", !createdStart.IsZero())
	return total, nil
}

// Run syncs on start and then on every tick until ctx is cancelled. Sync
// failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) {
	log := logger.From(ctx)

	if _, err := s.Sync(ctx); err != nil {
		log.Error("crm sync failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				log.Error("crm sync failed", "err", err)
			}
		}
	}
}
