package calls

import (
	"context"
	"time"

	"clinic-concierge/pkg/logger"
)

// defaultWindows is the escalating series of correlation windows. Webhook
// delivery latency is unpredictable; trying the smallest window first reduces
// the chance of attributing a stale unrelated pending call to the wrong user.
var defaultWindows = []time.Duration{
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// Correlator matches an asynchronous outcome notification back to the single
// pending record it belongs to. The provider's webhook is indexed only by
// phone numbers and timing, plus an optional provider call id.
type Correlator struct {
	store     Store
	actuators Actuators
	windows   []time.Duration
}

func NewCorrelator(store Store, actuators Actuators) *Correlator {
	return &Correlator{store: store, actuators: actuators, windows: defaultWindows}
}

// correlation is the internal match verdict.
type correlation struct {
	rec     CallRecord
	matched bool

	// foreign marks traffic between numbers we do not track at all
	// (unrelated calls sharing the telephony account).
	foreign bool
}

// find applies the matching strategies in strict priority order:
//  1. provider call id exact match, which is authoritative and skips all heuristics;
//  2. actuator-number resolution from either side of the call;
//  3. windowed lookup over pending records, smallest window first.
func (c *Correlator) find(ctx context.Context, n Notification) (correlation, error) {
	log := logger.From(ctx)

	if n.ProviderCallID != "" {
		rec, ok, err := c.store.FindByProviderID(ctx, n.ProviderCallID)
		if err != nil {
			return correlation{}, err
		}
		if ok {
			log.Debug("call matched by provider id", "call_id", rec.CallID, "provider_call_id", n.ProviderCallID)
			return correlation{rec: rec, matched: true}, nil
		}
	}

	_, target, ok := c.actuators.Lookup(n.CallerID)
	if !ok {
		_, target, ok = c.actuators.Lookup(n.CalledDID)
	}
	if !ok {
		return correlation{foreign: true}, nil
	}

	for _, w := range c.windows {
		rec, ok, err := c.store.FindByTargetAndWindow(ctx, target, w, []Status{StatusPending})
		if err != nil {
			return correlation{}, err
		}
		if ok {
			log.Debug("call matched by target and window",
				"call_id", rec.CallID,
				"target", target,
				"window_s", int(w.Seconds()),
			)
			return correlation{rec: rec, matched: true}, nil
		}
	}

	// Expected for calls not initiated through the bot (e.g. a manual call
	// over the same line); not an error.
	log.Info("call outcome untracked", "target", target, "provider_call_id", n.ProviderCallID)
	return correlation{}, nil
}
