package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"clinic-concierge/internal/calls"
	"clinic-concierge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler converts Zadarma webhook requests to internal notifications
// and delegates to the core processor.
//
// The provider POSTs form-encoded events and, separately, GETs the endpoint
// with a zd_echo parameter to verify ownership. When Secret is set, POST
// bodies are authenticated via the Signature header.
type WebhookHandler struct {
	Processor *calls.Processor

	// Secret enables Signature verification; it is the API secret.
	Secret string
}

func (h WebhookHandler) Handle(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		// Endpoint ownership check: echo the challenge back verbatim.
		if echo := c.Query("zd_echo"); echo != "" {
			c.String(http.StatusOK, echo)
			return
		}
		c.Status(http.StatusOK)
		return
	}

	log := logger.FromGin(c)

	n, sig, err := ParseNotification(c.Request)
	if err != nil {
		log.Warn("webhook parse failed", "err", err)
		c.JSON(http.StatusOK, calls.Result{Outcome: calls.OutcomeMalformed, Message: "ignored: malformed"})
		return
	}

	if h.Secret != "" && !verifySignature(h.Secret, sig) {
		log.Warn("webhook signature mismatch", "event", n.Event)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	ctx := logger.With(c.Request.Context(), log)
	res, err := h.Processor.ProcessNotification(ctx, n)
	if err != nil {
		// Infrastructure failure: log it and answer non-success without
		// crashing; the call record stays untouched for a later retry.
		log.Error("webhook processing failed", "err", err)
		c.JSON(http.StatusOK, calls.Result{Message: "processing failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// signedFields is the material the provider signs on webhook delivery.
type signedFields struct {
	Header    string
	CallerID  string
	CalledDID string
	CallStart string
}

// ParseNotification extracts the notification and signature material from a
// form-encoded webhook request. Only structurally unusable payloads error;
// field-level validation belongs to the processor.
func ParseNotification(r *http.Request) (calls.Notification, signedFields, error) {
	if err := r.ParseForm(); err != nil {
		return calls.Notification{}, signedFields{}, err
	}

	durRaw := strings.TrimSpace(r.PostFormValue("duration"))
	dur := 0
	if durRaw != "" {
		var err error
		dur, err = strconv.Atoi(durRaw)
		if err != nil {
			return calls.Notification{}, signedFields{}, fmt.Errorf("duration %q: %w", durRaw, err)
		}
	}

	n := calls.Notification{
		Event:          strings.TrimSpace(r.PostFormValue("event")),
		CallerID:       strings.TrimPrefix(strings.TrimSpace(r.PostFormValue("caller_id")), "+"),
		CalledDID:      strings.TrimSpace(r.PostFormValue("called_did")),
		Disposition:    strings.TrimSpace(r.PostFormValue("disposition")),
		Duration:       dur,
		ProviderCallID: strings.TrimSpace(r.PostFormValue("pbx_call_id")),
	}
	sig := signedFields{
		Header:    r.Header.Get("Signature"),
		CallerID:  r.PostFormValue("caller_id"),
		CalledDID: r.PostFormValue("called_did"),
		CallStart: r.PostFormValue("call_start"),
	}
	return n, sig, nil
}

func verifySignature(secret string, sig signedFields) bool {
	if sig.Header == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(sig.CallerID + sig.CalledDID + sig.CallStart))
	// Same convention as the API client: base64 over the hex digest, not
	// over the raw MAC bytes.
	want := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))
	return hmac.Equal([]byte(want), []byte(sig.Header))
}
