package model

import (
	"context"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	CheckoutSessionCompleted          PaymentEventType = "checkout.session.completed"
	CheckoutSessionAsyncPaymentPassed PaymentEventType = "checkout.session.async_payment_succeeded"
	CheckoutSessionAsyncPaymentFailed PaymentEventType = "checkout.session.async_payment_failed"
	CheckoutSessionExpired            PaymentEventType = "checkout.session.expired"
)

func (t PaymentEventType) IsCompletion() bool {
	return t == CheckoutSessionCompleted || t == CheckoutSessionAsyncPaymentPassed
}

func (t PaymentEventType) IsFailure() bool {
	return t == CheckoutSessionExpired || t == CheckoutSessionAsyncPaymentFailed
}

// PaymentEvent is a verified notification from the payment provider.
type PaymentEvent struct {
	ID        string
	Type      PaymentEventType
	SessionID string
	// AmountTotal is the settled total in minor units, nil when the provider
	// did not report one.
	AmountTotal *int64
	Currency    string
}

type CheckoutSessionRequest struct {
	CourseID        uuid.UUID
	BuyerID         uuid.UUID
	CourseTitle     string
	CourseThumbnail string
	UnitAmountMinor int64
	Currency        string
	SuccessURL      string
	CancelURL       string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	// VerifyAndParseEvent must return an error wrapping ErrVerification when
	// the payload is not authentic.
	VerifyAndParseEvent(payload []byte, signatureHeader string) (PaymentEvent, error)
}
