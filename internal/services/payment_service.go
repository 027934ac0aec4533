package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopilent/internal/metrics"
	"shopilent/internal/models"
	"shopilent/internal/payments"
	"shopilent/internal/repositories"
	"shopilent/pkg/logger"
)

type ProcessPaymentCommand struct {
	PaymentMethodToken string `json:"payment_method_token" validate:"required,max=255"`
	Method             string `json:"method" validate:"omitempty,oneof=card wallet"`
}

type RefundCommand struct {
	// Amount defaults to everything still refundable.
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" validate:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

// PaymentOutcome is the result of a charge attempt that did not fail.
type PaymentOutcome struct {
	Payment        *models.Payment `json:"payment"`
	RequiresAction bool            `json:"requires_action"`
	ClientSecret   string          `json:"client_secret,omitempty"`
}

// paymentInFlightWindow is how long a pending charge blocks another attempt
// on the same order. Older pending charges are treated as abandoned.
const paymentInFlightWindow = 15 * time.Minute

// PaymentService charges and refunds orders through the payment provider
// and applies the provider's webhook notifications.
type PaymentService struct {
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	provider payments.Provider
	tx       Transactor
	events   EventWriter
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPaymentService(orders repositories.OrderRepository, users repositories.UserRepository, provider payments.Provider, tx Transactor, events EventWriter, m *metrics.Metrics) *PaymentService {
	return &PaymentService{orders: orders, users: users, provider: provider, tx: tx, events: events, metrics: m, now: time.Now}
}

func paymentEvent(eventType string, p *models.Payment) models.PaymentEvent {
	return models.PaymentEvent{Type: eventType, PaymentID: p.ID, OrderID: p.OrderID, Status: p.Status, Amount: p.Amount}
}

// ProcessPayment charges a pending order of the actor. The pending payment is
// stored before the provider is called so a crash leaves a trace. Storing it
// also bumps the order version, so of two concurrent attempts only one
// reaches the provider.
func (s *PaymentService) ProcessPayment(ctx context.Context, actor Actor, orderID uuid.UUID, cmd ProcessPaymentCommand) (*PaymentOutcome, error) {
	method := cmd.Method
	if method == "" {
		method = "card"
	}

	var payment *models.Payment
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != actor.UserID {
			return fmt.Errorf("order %s belongs to another user: %w", orderID, models.ErrForbidden)
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("order is %s: %w", order.Status, models.ErrInvalidState)
		}
		if order.PaymentStatus == models.PaymentStatusSucceeded {
			return fmt.Errorf("order is already paid: %w", models.ErrInvalidState)
		}
		inFlight, err := s.orders.HasPendingPayment(ctx, order.ID, s.now().Add(-paymentInFlightWindow))
		if err != nil {
			return err
		}
		if inFlight {
			return fmt.Errorf("a payment for order %s is already in progress: %w", orderID, models.ErrInvalidState)
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}

		payment = &models.Payment{
			OrderID:  order.ID,
			UserID:   actor.UserID,
			Amount:   order.Total,
			Currency: order.Currency,
			Method:   method,
			Provider: s.provider.Name(),
			Status:   models.PaymentStatusPending,
		}
		return s.orders.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	result, providerErr := s.provider.ProcessPayment(ctx, payments.PaymentRequest{
		PaymentID:          payment.ID,
		OrderID:            orderID,
		UserID:             actor.UserID,
		Amount:             payment.Amount,
		Currency:           payment.Currency,
		PaymentMethodToken: cmd.PaymentMethodToken,
		CustomerID:         s.customerID(ctx, actor.UserID),
		Description:        "Order " + orderID.String(),
	})
	if providerErr == nil && result.Status == models.PaymentStatusFailed {
		providerErr = &models.PaymentError{Code: result.FailureCode, Message: result.FailureMessage}
	}

	if providerErr != nil {
		var pe *models.PaymentError
		if !errors.As(providerErr, &pe) {
			pe = &models.PaymentError{Code: payments.CodeProviderUnavailable, Message: "payment provider unavailable", Err: providerErr}
		}
		if result != nil {
			payment.ExternalReference = stringPtr(result.ExternalReference)
		}
		if err := s.recordFailure(ctx, payment.ID, payment.ExternalReference, pe); err != nil {
			return nil, err
		}
		s.metrics.RecordPayment("failed", pe.Code)
		logger.Warn(ctx, "Payment failed", "order_id", orderID, "payment_id", payment.ID, "code", pe.Code)
		return nil, pe
	}

	outcome := &PaymentOutcome{RequiresAction: result.RequiresAction, ClientSecret: result.ClientSecret}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.orders.GetPaymentByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		p.ExternalReference = stringPtr(result.ExternalReference)
		outcome.Payment = p

		switch result.Status {
		case models.PaymentStatusSucceeded:
			return s.applySuccess(ctx, p, result.TransactionID)
		case models.PaymentStatusCanceled:
			if err := p.MarkCanceled(s.now()); err != nil {
				return err
			}
		}
		return s.orders.UpdatePayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(string(outcome.Payment.Status), "")
	logger.Info(ctx, "Payment processed", "order_id", orderID, "payment_id", payment.ID, "status", outcome.Payment.Status)
	return outcome, nil
}

// customerID returns the provider customer of the user, creating it on the
// first payment. Failures only cost the customer link, never the charge.
func (s *PaymentService) customerID(ctx context.Context, userID uuid.UUID) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "Failed to load payer", "user_id", userID, "error", err)
		return ""
	}
	if user.PaymentCustomerID != nil {
		return *user.PaymentCustomerID
	}

	id, err := s.provider.CreateCustomer(ctx, user.Email, user.FullName())
	if err != nil {
		logger.Warn(ctx, "Failed to create payment customer", "user_id", userID, "error", err)
		return ""
	}
	if err := s.users.SetPaymentCustomerID(ctx, userID, id); err != nil {
		logger.Warn(ctx, "Failed to store payment customer", "user_id", userID, "customer_id", id, "error", err)
	}
	return id
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// applySuccess marks a pending payment captured and the order paid.
func (s *PaymentService) applySuccess(ctx context.Context, p *models.Payment, transactionID string) error {
	if err := p.MarkSucceeded(transactionID, s.now()); err != nil {
		return err
	}
	if err := s.orders.UpdatePayment(ctx, p); err != nil {
		return err
	}

	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	events := []models.Event{paymentEvent(models.EventPaymentSucceeded, p)}
	if err := order.MarkAsPaid(); err != nil {
		// The order moved on while the charge was in flight. Keep the
		// payment so staff can refund it.
		logger.Warn(ctx, "Captured payment for an order that cannot be marked paid", "order_id", order.ID, "payment_id", p.ID, "error", err)
	} else {
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		events = append(events, models.OrderEvent{
			Type:    models.EventOrderStatusChanged,
			OrderID: order.ID,
			UserID:  order.UserID,
			Status:  order.Status,
			Total:   order.Total,
		})
	}
	return addEvents(ctx, s.events, events...)
}

func (s *PaymentService) recordFailure(ctx context.Context, paymentID uuid.UUID, reference *string, pe *models.PaymentError) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.orders.GetPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if reference != nil {
			p.ExternalReference = reference
		}
		return s.applyFailure(ctx, p, pe.Code, pe.Message)
	})
}

func (s *PaymentService) applyFailure(ctx context.Context, p *models.Payment, code, message string) error {
	if err := p.MarkFailed(code, message, s.now()); err != nil {
		return err
	}
	if err := s.orders.UpdatePayment(ctx, p); err != nil {
		return err
	}
	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != models.PaymentStatusFailed && order.PaymentStatus != models.PaymentStatusSucceeded {
		order.MarkPaymentFailed()
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
	}
	return s.events.Add(ctx, paymentEvent(models.EventPaymentFailed, p))
}

// Refund returns money of a paid order. A nil amount refunds the remainder.
func (s *PaymentService) Refund(ctx context.Context, orderID uuid.UUID, cmd RefundCommand) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	before := order.RefundedAmount
	amount := order.RefundableAmount()
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	check := *order
	if err := check.ApplyRefund(amount); err != nil {
		if order.RefundableAmount().IsZero() {
			return nil, fmt.Errorf("order %s has nothing to refund: %w", orderID, models.ErrInvalidState)
		}
		return nil, err
	}

	payment, err := s.orders.GetSucceededPayment(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("order %s has no captured payment: %w", orderID, models.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}
	if payment.ExternalReference == nil {
		return nil, fmt.Errorf("payment %s has no provider reference: %w", payment.ID, models.ErrInvalidState)
	}

	result, err := s.provider.Refund(ctx, payments.RefundRequest{
		ExternalReference: *payment.ExternalReference,
		Amount:            amount,
		Currency:          order.Currency,
		Reason:            cmd.Reason,
	})
	if err != nil {
		var pe *models.PaymentError
		code := ""
		if errors.As(err, &pe) {
			code = pe.Code
		}
		s.metrics.RecordPayment("refund_failed", code)
		return nil, err
	}

	// The charge.refunded webhook may have been applied while the provider
	// call was in flight, so settle on the cumulative total instead of
	// adding amount again.
	total := before.Add(amount)
	if result != nil && result.TotalRefunded.IsPositive() {
		total = result.TotalRefunded
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return s.reconcileRefund(ctx, order, payment.ID, total)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayment("refunded", "")
	logger.Info(ctx, "Order refunded", "order_id", orderID, "amount", amount.String())
	return order, nil
}

func (s *PaymentService) applyRefund(ctx context.Context, order *models.Order, paymentID uuid.UUID, amount decimal.Decimal) error {
	if err := order.ApplyRefund(amount); err != nil {
		return err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	p, err := s.orders.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == models.PaymentStatusRefunded && p.Status == models.PaymentStatusSucceeded {
		if err := p.MarkRefunded(); err != nil {
			return err
		}
		if err := s.orders.UpdatePayment(ctx, p); err != nil {
			return err
		}
	}
	event := paymentEvent(models.EventPaymentRefunded, p)
	event.Amount = amount
	return s.events.Add(ctx, event)
}

// HandleWebhook verifies and applies a provider notification. Events for
// unknown payments and unhandled event types are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case payments.EventPaymentIntentSucceeded, payments.EventPaymentIntentFailed,
		payments.EventPaymentIntentCanceled, payments.EventChargeRefunded:
	default:
		logger.Debug(ctx, "Ignoring webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}
	if event.ExternalReference == "" {
		logger.Warn(ctx, "Webhook event without payment reference", "event_id", event.ID, "type", event.Type)
		return nil
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.orders.GetPaymentByExternalReference(ctx, event.ExternalReference)
		if errors.Is(err, models.ErrNotFound) {
			logger.Warn(ctx, "Webhook for unknown payment", "event_id", event.ID, "reference", event.ExternalReference)
			return nil
		}
		if err != nil {
			return err
		}

		switch event.Type {
		case payments.EventPaymentIntentSucceeded:
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			return s.applySuccess(ctx, p, "")
		case payments.EventPaymentIntentFailed:
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			code := event.FailureCode
			if code == "" {
				code = payments.CodeCardDeclined
			}
			return s.applyFailure(ctx, p, code, event.FailureMessage)
		case payments.EventPaymentIntentCanceled:
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			if err := p.MarkCanceled(s.now()); err != nil {
				return err
			}
			return s.orders.UpdatePayment(ctx, p)
		default:
			return s.applyWebhookRefund(ctx, p, event)
		}
	})
}

func (s *PaymentService) applyWebhookRefund(ctx context.Context, p *models.Payment, event *payments.WebhookEvent) error {
	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	return s.reconcileRefund(ctx, order, p.ID, event.AmountRefunded)
}

// reconcileRefund raises the order's refunded amount to total, the
// cumulative amount refunded at the provider. Refunds already recorded
// locally produce no change.
func (s *PaymentService) reconcileRefund(ctx context.Context, order *models.Order, paymentID uuid.UUID, total decimal.Decimal) error {
	delta := total.Sub(order.RefundedAmount)
	if !delta.IsPositive() {
		logger.Debug(ctx, "Refund already recorded", "order_id", order.ID, "refunded", order.RefundedAmount.String())
		return nil
	}
	if delta.GreaterThan(order.RefundableAmount()) {
		delta = order.RefundableAmount()
		if !delta.IsPositive() {
			return nil
		}
	}
	return s.applyRefund(ctx, order, paymentID, delta)
}
