package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"bookstore/internal/metrics"
	"bookstore/internal/util"
	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
)

const eventChargeSuccess = "charge.success"

// PaymentRequest starts a checkout for one book.
type PaymentRequest struct {
	BookID  uint
	Email   string
	BuyerID uint
}

// Checkout is what the buyer needs to continue on the gateway.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// InitiatePayment opens a gateway transaction and records it as pending.
func (a *App) InitiatePayment(ctx context.Context, req PaymentRequest) (Checkout, error) {
	email := normalizeEmail(req.Email)
	if !emailPattern.MatchString(email) {
		return Checkout{}, ErrInvalidEmail
	}
	if req.BookID == 0 {
		return Checkout{}, ErrBookIDRequired
	}
	book, err := a.loadBook(req.BookID)
	if err != nil {
		return Checkout{}, err
	}
	if _, ok, err := a.store.GetUserByID(req.BuyerID); err != nil {
		return Checkout{}, fmt.Errorf("load buyer: %w", err)
	} else if !ok {
		return Checkout{}, ErrBuyerNotFound
	}

	reference := uuid.NewString()
	amount := book.Price.Shift(2).IntPart()
	authURL, err := a.gateway.InitializeTransaction(ctx, email, amount, reference)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("paystack_initialize_failed", "book_id", book.ID, "err", err)
		return Checkout{}, ErrPaymentInitFailed
	}
	payment := domain.Payment{
		Reference: reference,
		Email:     email,
		Amount:    book.Price,
		Status:    domain.PaymentPending,
		BookID:    book.ID,
		BuyerID:   req.BuyerID,
	}
	if err := a.store.CreatePayment(&payment); err != nil {
		return Checkout{}, fmt.Errorf("save payment: %w", err)
	}
	return Checkout{AuthorizationURL: authURL, Reference: reference}, nil
}

// VerifyPayment asks the gateway for the outcome of a transaction and settles
// the pending row. The returned payment reflects the stored state.
func (a *App) VerifyPayment(ctx context.Context, reference string) (domain.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.Payment{}, ErrReferenceRequired
	}
	payment, err := a.loadPayment(reference)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}
	status, err := a.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("paystack_verify_failed", "reference", reference, "err", err)
		return domain.Payment{}, ErrPaymentVerifyFailed
	}
	to := domain.PaymentFailed
	if status == string(domain.PaymentSuccess) {
		to = domain.PaymentSuccess
	}
	if _, err := a.transition(ctx, reference, to, "verify"); err != nil {
		return domain.Payment{}, err
	}
	return a.loadPayment(reference)
}

func (a *App) loadPayment(reference string) (domain.Payment, error) {
	payment, ok, err := a.store.GetPaymentByReference(reference)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	if !ok {
		return domain.Payment{}, ErrPaymentNotFound
	}
	return payment, nil
}

func (a *App) transition(ctx context.Context, reference string, to domain.PaymentStatus, source string) (bool, error) {
	changed, err := a.store.TransitionPayment(reference, to, a.now())
	if err != nil {
		return false, fmt.Errorf("update payment: %w", err)
	}
	if changed {
		metrics.RecordPaymentTransition(string(to), source)
		util.LoggerFromContext(ctx).Info("payment_transition", "reference", reference, "status", to, "source", source)
	}
	return changed, nil
}

// HandleWebhook authenticates a gateway push and applies charge.success
// events. Unknown references and already settled payments are ignored.
func (a *App) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !auth.VerifySignature(a.webhookSecret, body, signature) {
		return ErrInvalidSignature
	}
	if !gjson.ValidBytes(body) {
		return ErrInvalidWebhook
	}
	parsed := gjson.ParseBytes(body)
	event := parsed.Get("event").String()
	reference := strings.TrimSpace(parsed.Get("data.reference").String())

	applied := false
	if event == eventChargeSuccess && reference != "" {
		if to, ok := domain.ParsePaymentStatus(parsed.Get("data.status").String()); ok && to.Terminal() {
			changed, err := a.transition(ctx, reference, to, "webhook")
			if err != nil {
				return err
			}
			applied = changed
		}
	}
	record := domain.PaymentEvent{
		Event:      event,
		Reference:  reference,
		Payload:    body,
		Applied:    applied,
		ReceivedAt: a.now(),
	}
	if err := a.store.RecordPaymentEvent(record); err != nil {
		util.LoggerFromContext(ctx).Warn("payment_event_record_failed", "reference", reference, "err", err)
	}
	return nil
}
