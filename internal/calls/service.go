package calls

import (
	"context"
	"fmt"

	"clinic-concierge/pkg/logger"
)

// Sender delivers a message to a chat. Implemented by the Telegram adapter.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, htmlMarkup bool) error
}

// Auditor records access events. Implementations must be best-effort and
// never block the call flow.
type Auditor interface {
	AccessRequested(ctx context.Context, rec CallRecord)
	AccessOutcome(ctx context.Context, rec CallRecord, status Status, disposition string)
}

// NopAuditor satisfies Auditor when auditing is disabled (tests).
type NopAuditor struct{}

func (NopAuditor) AccessRequested(context.Context, CallRecord)               {}
func (NopAuditor) AccessOutcome(context.Context, CallRecord, Status, string) {}

// Processor is the webhook-side core: correlate an inbound notification,
// classify the disposition, persist the terminal status and notify the
// requester. Each invocation is a short-lived independent unit of work;
// concurrent invocations are safe because all mutation funnels through the
// store's conditioned Resolve.
type Processor struct {
	store       Store
	correlator  *Correlator
	classifier  Classifier
	sender      Sender
	audit       Auditor
	adminChatID int64
}

func NewProcessor(store Store, correlator *Correlator, classifier Classifier, sender Sender, audit Auditor, adminChatID int64) *Processor {
	if audit == nil {
		audit = NopAuditor{}
	}
	return &Processor{
		store:       store,
		correlator:  correlator,
		classifier:  classifier,
		sender:      sender,
		audit:       audit,
		adminChatID: adminChatID,
	}
}

// ProcessNotification handles one provider webhook. Business-level
// conditions (ignored event, untracked call) come back as Result values;
// only infrastructure failures are returned as errors.
func (p *Processor) ProcessNotification(ctx context.Context, n Notification) (Result, error) {
	log := logger.From(ctx)

	if n.Event != EventCallEnded {
		log.Debug("webhook event ignored", "event", n.Event)
		return Result{Success: true, Outcome: OutcomeIgnored, Message: fmt.Sprintf("event %s ignored", n.Event)}, nil
	}
	if n.Disposition == "" || (n.CallerID == "" && n.CalledDID == "" && n.ProviderCallID == "") {
		log.Warn("webhook payload malformed", "event", n.Event)
		return Result{Outcome: OutcomeMalformed, Message: "ignored: malformed"}, nil
	}

	cor, err := p.correlator.find(ctx, n)
	if err != nil {
		return Result{}, err
	}
	if cor.foreign {
		return Result{Success: true, Outcome: OutcomeIgnored, Message: "call not tracked by our system"}, nil
	}
	if !cor.matched {
		return Result{Success: true, Outcome: OutcomeUntracked, Message: "no pending call matched"}, nil
	}

	rec := cor.rec
	class := p.classifier.Classify(n.Disposition, n.Duration, rec.Action)

	// The conditioned transition is the single-winner point: if another
	// notification already resolved this record, treat ours as untracked
	// and send nothing.
	claimed, err := p.store.Resolve(ctx, rec.CallID, class.Status, n.ProviderCallID)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		log.Warn("call already resolved, skipping notification",
			"call_id", rec.CallID,
			"status", string(class.Status),
		)
		return Result{Success: true, Outcome: OutcomeUntracked, CallID: rec.CallID, Message: "call already resolved"}, nil
	}

	// Message delivery and status persistence are deliberately independent:
	// the status is already final, so a failed send is logged, not retried.
	if err := p.sender.Send(ctx, rec.ChatID, class.Message, true); err != nil {
		log.Error("outcome message send failed", "call_id", rec.CallID, "chat_id", rec.ChatID, "err", err)
	}

	if class.AlertOperator && p.adminChatID != 0 {
		alert := fmt.Sprintf(
			"🚨 ПРОБЛЕМА: Дзвінок на %s (%s) ПРИЙНЯТО замість скидання! Тривалість: %ds",
			rec.Action.Name(), rec.TargetNumber, n.Duration,
		)
		if err := p.sender.Send(ctx, p.adminChatID, alert, false); err != nil {
			log.Error("operator alert send failed", "call_id", rec.CallID, "err", err)
		}
	}

	p.audit.AccessOutcome(ctx, rec, class.Status, n.Disposition)

	log.Info("call outcome processed",
		"call_id", rec.CallID,
		"status", string(class.Status),
		"disposition", n.Disposition,
		"duration_s", n.Duration,
	)
	return Result{
		Success: true,
		Outcome: OutcomeProcessed,
		CallID:  rec.CallID,
		Status:  class.Status,
		Message: class.Message,
	}, nil
}
