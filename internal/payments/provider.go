// Package payments talks to the external payment provider.
package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopilent/internal/models"
)

// Domain error codes returned inside models.PaymentError.
const (
	CodeCardDeclined         = "card_declined"
	CodeExpiredCard          = "expired_card"
	CodeIncorrectCVC         = "incorrect_cvc"
	CodeInsufficientFunds    = "insufficient_funds"
	CodeProcessingError      = "processing_error"
	CodeRateLimited          = "rate_limited"
	CodeAuthenticationFailed = "authentication_failed"
	CodeInvalidRequest       = "invalid_request"
	CodeProviderUnavailable  = "provider_unavailable"
)

// Webhook event types dispatched by the payment service.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventPaymentIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded         = "charge.refunded"
)

type PaymentRequest struct {
	PaymentID          uuid.UUID
	OrderID            uuid.UUID
	UserID             uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	PaymentMethodToken string
	CustomerID         string
	Description        string
}

type PaymentResult struct {
	Status            models.PaymentStatus
	ExternalReference string
	TransactionID     string
	RequiresAction    bool
	ClientSecret      string
	FailureCode       string
	FailureMessage    string
}

type RefundRequest struct {
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
}

type RefundResult struct {
	RefundID string
	Status   string
	Amount   decimal.Decimal
	// TotalRefunded is the cumulative amount refunded on the payment,
	// including this refund. Zero when the provider did not report it.
	TotalRefunded decimal.Decimal
}

// WebhookEvent is a verified provider notification reduced to what the
// payment service acts on.
type WebhookEvent struct {
	ID                string
	Type              string
	ExternalReference string
	AmountRefunded    decimal.Decimal
	FullyRefunded     bool
	FailureCode       string
	FailureMessage    string
}

// Provider is the payment gateway used by the payment service.
type Provider interface {
	Name() string
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
