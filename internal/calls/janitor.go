package calls

import (
	"context"
	"fmt"
	"time"

	"clinic-concierge/pkg/logger"
)

// Janitor periodically times out abandoned pending records and prunes rows
// past the retention window. A pending record with no matching webhook is
// normal when the provider drops a notification; the janitor is what keeps
// such records from lingering forever.
type Janitor struct {
	store          Store
	sender         Sender
	classifier     Classifier
	pendingTimeout time.Duration
	retention      time.Duration
	interval       time.Duration
}

func NewJanitor(store Store, sender Sender, classifier Classifier, pendingTimeout, retention, interval time.Duration) *Janitor {
	return &Janitor{
		store:          store,
		sender:         sender,
		classifier:     classifier,
		pendingTimeout: pendingTimeout,
		retention:      retention,
		interval:       interval,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Errors are logged; the next tick retries.
func (j *Janitor) Sweep(ctx context.Context) {
	log := logger.From(ctx)

	timedOut, err := j.store.MarkTimedOut(ctx, j.pendingTimeout)
	if err != nil {
		log.Error("janitor timeout sweep failed", "err", err)
	}
	for _, rec := range timedOut {
		log.Warn("call timed out without webhook", "call_id", rec.CallID, "target", rec.TargetNumber)
		msg := fmt.Sprintf(
			"❌ Не отримали підтвердження відкриття (%s).\nСпробуйте ще раз або зателефонуйте: %s",
			rec.Action.Name(), j.classifier.SupportPhone,
		)
		if err := j.sender.Send(ctx, rec.ChatID, msg, false); err != nil {
			log.Error("timeout message send failed", "call_id", rec.CallID, "err", err)
		}
	}

	n, err := j.store.Prune(ctx, j.retention)
	if err != nil {
		log.Error("janitor prune failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("pruned call records", "count", n)
	}
}
