package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"shopilent/internal/config"
	"shopilent/internal/models"
	"shopilent/pkg/logger"
)

// The slices of the Stripe client the provider calls.
type (
	PaymentIntentAPI interface {
		New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	}
	RefundAPI interface {
		New(params *stripe.RefundParams) (*stripe.Refund, error)
	}
	CustomerAPI interface {
		New(params *stripe.CustomerParams) (*stripe.Customer, error)
	}
)

// StripeAPI bundles the Stripe endpoints used by StripeProvider.
type StripeAPI struct {
	PaymentIntents PaymentIntentAPI
	Refunds        RefundAPI
	Customers      CustomerAPI
}

// StripeProvider processes card payments through Stripe payment intents.
type StripeProvider struct {
	api           StripeAPI
	webhookSecret string
}

// NewStripeProvider builds a provider backed by the real Stripe client.
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	sc := client.New(cfg.SecretKey, nil)
	return NewStripeProviderWithAPI(StripeAPI{
		PaymentIntents: sc.PaymentIntents,
		Refunds:        sc.Refunds,
		Customers:      sc.Customers,
	}, cfg.WebhookSecret)
}

func NewStripeProviderWithAPI(api StripeAPI, webhookSecret string) *StripeProvider {
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) Name() string { return "stripe" }

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// ToMinorUnits converts an amount to the smallest currency unit Stripe expects.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// ProcessPayment creates and confirms a payment intent in one call. Redirect
// based methods are disabled so the result is final or requires_action.
func (p *StripeProvider) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(ToMinorUnits(req.Amount, currency)),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.PaymentMethodToken),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("payment_id", req.PaymentID.String())
	params.SetIdempotencyKey("payment-" + req.PaymentID.String())

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		logger.Warn(ctx, "Stripe payment intent failed", "order_id", req.OrderID, "error", err)
		return nil, TranslateError(err)
	}
	return intentResult(intent), nil
}

func intentResult(intent *stripe.PaymentIntent) *PaymentResult {
	result := &PaymentResult{
		ExternalReference: intent.ID,
		ClientSecret:      intent.ClientSecret,
	}
	if intent.LatestCharge != nil {
		result.TransactionID = intent.LatestCharge.ID
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = models.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		result.Status = models.PaymentStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		result.Status = models.PaymentStatusFailed
		result.FailureCode = CodeCardDeclined
		if intent.LastPaymentError != nil {
			if pe, ok := TranslateError(intent.LastPaymentError).(*models.PaymentError); ok {
				result.FailureCode = pe.Code
				result.FailureMessage = pe.Message
			}
		}
	case stripe.PaymentIntentStatusRequiresAction:
		result.Status = models.PaymentStatusPending
		result.RequiresAction = true
	default:
		result.Status = models.PaymentStatusPending
	}
	return result
}

// Refund refunds amount of a captured payment intent. A zero amount refunds
// the remainder.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ExternalReference),
	}
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(ToMinorUnits(req.Amount, req.Currency))
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	params.Context = ctx
	params.AddExpand("charge")

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		logger.Warn(ctx, "Stripe refund failed", "payment_intent", req.ExternalReference, "error", err)
		return nil, TranslateError(err)
	}
	result := &RefundResult{
		RefundID: refund.ID,
		Status:   string(refund.Status),
		Amount:   FromMinorUnits(refund.Amount, req.Currency),
	}
	if refund.Charge != nil {
		result.TotalRefunded = FromMinorUnits(refund.Charge.AmountRefunded, req.Currency)
	}
	return result, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", TranslateError(err)
	}
	return customer.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent the event refers to.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, models.NewValidationError("signature", fmt.Sprintf("webhook verification failed: %v", err))
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventPaymentIntentSucceeded, EventPaymentIntentFailed, EventPaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, models.NewValidationError("payload", "malformed payment intent")
		}
		out.ExternalReference = intent.ID
		if intent.LastPaymentError != nil {
			if pe, ok := TranslateError(intent.LastPaymentError).(*models.PaymentError); ok {
				out.FailureCode = pe.Code
				out.FailureMessage = pe.Message
			}
		}
	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, models.NewValidationError("payload", "malformed charge")
		}
		if charge.PaymentIntent != nil {
			out.ExternalReference = charge.PaymentIntent.ID
		}
		out.AmountRefunded = FromMinorUnits(charge.AmountRefunded, string(charge.Currency))
		out.FullyRefunded = charge.Refunded
	}
	return out, nil
}
