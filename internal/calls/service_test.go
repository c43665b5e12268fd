package calls

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	ChatID int64
	Text   string
	HTML   bool
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string, html bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, HTML: html})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestProcessor(store *MemoryStore, sender *fakeSender) *Processor {
	cor := NewCorrelator(store, testActuators)
	return NewProcessor(store, cor, testClassifier, sender, nil, 573368771)
}

func TestProcessNotification_GateOpened(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))
	sender := &fakeSender{}

	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now.Add(-10 * time.Second)))
	callID, err := reg.Register(ctx, 42, 4242, ActionGate, "0930063585")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	p := newTestProcessor(store, sender)
	res, err := p.ProcessNotification(ctx, Notification{
		Event:       EventCallEnded,
		CallerID:    "380930063585",
		Disposition: "cancel",
		Duration:    4,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeProcessed || res.Status != StatusSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	if msgs[0].ChatID != 4242 || !strings.Contains(msgs[0].Text, "Ворота") {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}

	rec, _ := store.Get(callID)
	if rec.Status != StatusSuccess {
		t.Fatalf("expected stored success, got %s", rec.Status)
	}
}

func TestProcessNotification_AnsweredAlertsOperator(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))
	sender := &fakeSender{}

	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now.Add(-5 * time.Second)))
	if _, err := reg.Register(ctx, 42, 4242, ActionDoor, "0933297777"); err != nil {
		t.Fatalf("register: %v", err)
	}

	p := newTestProcessor(store, sender)
	res, err := p.ProcessNotification(ctx, Notification{
		Event:       EventCallEnded,
		CallerID:    "0933297777",
		Disposition: "answered",
		Duration:    12,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusMisconfigured {
		t.Fatalf("expected misconfigured, got %s", res.Status)
	}

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user message plus exactly one operator alert, got %d", len(msgs))
	}
	if msgs[1].ChatID != 573368771 || !strings.Contains(msgs[1].Text, "ПРИЙНЯТО") {
		t.Fatalf("unexpected operator alert: %+v", msgs[1])
	}
}

func TestProcessNotification_ForeignCallIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &fakeSender{}
	p := newTestProcessor(store, sender)

	res, err := p.ProcessNotification(ctx, Notification{
		Event:       EventCallEnded,
		CallerID:    "0991234567",
		CalledDID:   "0507654321",
		Disposition: "answered",
		Duration:    30,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %+v", res)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("foreign traffic must not trigger messages")
	}
}

func TestProcessNotification_NonEndEventsIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &fakeSender{}
	p := newTestProcessor(store, sender)

	for _, ev := range []string{"NOTIFY_START", "NOTIFY_INTERNAL", "NOTIFY_ANSWER"} {
		res, err := p.ProcessNotification(ctx, Notification{Event: ev, CallerID: "0930063585", Disposition: "cancel"})
		if err != nil {
			t.Fatalf("event %s: unexpected err: %v", ev, err)
		}
		if res.Outcome != OutcomeIgnored || !res.Success {
			t.Fatalf("event %s: expected acknowledged ignore, got %+v", ev, res)
		}
	}
}

func TestProcessNotification_Malformed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &fakeSender{}
	p := newTestProcessor(store, sender)

	res, err := p.ProcessNotification(ctx, Notification{Event: EventCallEnded})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeMalformed || res.Success {
		t.Fatalf("expected malformed result, got %+v", res)
	}
}

func TestProcessNotification_UntrackedSendsNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &fakeSender{}
	p := newTestProcessor(store, sender)

	res, err := p.ProcessNotification(ctx, Notification{
		Event:       EventCallEnded,
		CallerID:    "0930063585",
		Disposition: "cancel",
		Duration:    3,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeUntracked {
		t.Fatalf("expected untracked, got %+v", res)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("untracked outcome must not message anyone")
	}
}

func TestProcessNotification_ConcurrentRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))
	sender := &fakeSender{}

	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now.Add(-10 * time.Second)))
	if _, err := reg.Register(ctx, 42, 4242, ActionGate, "0930063585"); err != nil {
		t.Fatalf("register: %v", err)
	}

	p := newTestProcessor(store, sender)
	n := Notification{Event: EventCallEnded, CallerID: "0930063585", Disposition: "cancel", Duration: 4}

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.ProcessNotification(ctx, n)
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, res := range results {
		if res.Outcome == OutcomeProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("exactly one notification may win, got %d (results: %+v)", processed, results)
	}
	if got := len(sender.messages()); got != 1 {
		t.Fatalf("exactly one user message may be sent, got %d", got)
	}
}

func TestOpener_DialFailureClosesRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))

	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now))
	opener := NewOpener(reg, store, failingDialer{}, testActuators, nil)

	callID, err := opener.Open(ctx, 42, 4242, ActionDoor)
	if err == nil {
		t.Fatalf("expected dial error")
	}
	rec, ok := store.Get(callID)
	if !ok {
		t.Fatalf("record must exist even when dial fails")
	}
	if rec.Status != StatusFailed {
		t.Fatalf("failed dial must close the record, got %s", rec.Status)
	}
}

func TestOpener_RegistersBeforeDialing(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))

	reg := NewRegistrar(store)
	reg.SetClock(fixedClock(now))

	d := &recordingDialer{store: store}
	opener := NewOpener(reg, store, d, testActuators, nil)

	callID, err := opener.Open(ctx, 42, 4242, ActionGate)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !d.sawPending {
		t.Fatalf("record must be pending before the dial is placed")
	}
	rec, _ := store.Get(callID)
	if rec.Status != StatusPending {
		t.Fatalf("expected pending after successful dial, got %s", rec.Status)
	}
	if d.to != "0930063585" {
		t.Fatalf("expected gate number dialed, got %q", d.to)
	}
}

type failingDialer struct{}

func (failingDialer) Dial(context.Context, string) error {
	return context.DeadlineExceeded
}

type recordingDialer struct {
	store      *MemoryStore
	to         string
	sawPending bool
}

func (d *recordingDialer) Dial(ctx context.Context, to string) error {
	d.to = to
	if rec, ok, _ := d.store.FindByTargetAndWindow(ctx, to, time.Minute, []Status{StatusPending}); ok && rec.Status == StatusPending {
		d.sawPending = true
	}
	return nil
}

func TestJanitor_SweepTimesOutAndPrunes(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryStore()
	store.SetClock(fixedClock(now))
	sender := &fakeSender{}

	seed(t, store, CallRecord{CallID: "stale", ChatID: 7, Action: ActionDoor, TargetNumber: "0933297777", StartTime: now.Add(-30 * time.Minute), Status: StatusPending})
	seed(t, store, CallRecord{CallID: "ancient", TargetNumber: "0933297777", StartTime: now.Add(-2 * 24 * time.Hour), Status: StatusSuccess})

	j := NewJanitor(store, sender, testClassifier, 15*time.Minute, 24*time.Hour, time.Minute)
	j.Sweep(ctx)

	rec, _ := store.Get("stale")
	if rec.Status != StatusTimeout {
		t.Fatalf("expected stale record timed out, got %s", rec.Status)
	}
	if _, ok := store.Get("ancient"); ok {
		t.Fatalf("ancient record must be pruned")
	}
	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0].ChatID != 7 {
		t.Fatalf("expected one timeout message to chat 7, got %+v", msgs)
	}
}
