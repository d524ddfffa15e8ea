package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

const checkoutSessionEventPrefix = "checkout.session."

// Provider creates Stripe Checkout sessions and verifies Stripe webhooks.
type Provider struct {
	api           *client.API
	webhookSecret string
}

func NewProvider(secretKey, webhookSecret string) *Provider {
	return NewProviderWithBackends(secretKey, webhookSecret, nil)
}

// NewProviderWithBackends is NewProvider with custom Stripe backends; nil
// selects the default ones.
func NewProviderWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) *Provider {
	return &Provider{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req model.CheckoutSessionRequest) (model.CheckoutSession, error) {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.CourseTitle),
	}
	if req.CourseThumbnail != "" {
		productData.Images = stripe.StringSlice([]string{req.CourseThumbnail})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(req.UnitAmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.BuyerID.String()),
	}
	params.Context = ctx
	params.AddMetadata("courseId", req.CourseID.String())
	params.AddMetadata("userId", req.BuyerID.String())

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return model.CheckoutSession{}, errors.Wrap(err, "stripe checkout session")
	}
	return model.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// VerifyAndParseEvent checks the Stripe-Signature header against the webhook
// secret and fails closed on any mismatch.
func (p *Provider) VerifyAndParseEvent(payload []byte, signatureHeader string) (model.PaymentEvent, error) {
	if p.webhookSecret == "" {
		return model.PaymentEvent{}, errors.Wrap(model.ErrVerification, "webhook secret is not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return model.PaymentEvent{}, errors.Wrap(model.ErrVerification, err.Error())
	}

	out := model.PaymentEvent{
		ID:   event.ID,
		Type: model.PaymentEventType(event.Type),
	}
	if !strings.HasPrefix(string(event.Type), checkoutSessionEventPrefix) || event.Data == nil {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return model.PaymentEvent{}, errors.Wrap(model.ErrVerification, "malformed checkout session payload")
	}
	out.SessionID = session.ID
	out.Currency = string(session.Currency)
	if session.AmountTotal > 0 {
		total := session.AmountTotal
		out.AmountTotal = &total
	}
	return out, nil
}
