package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_StatusTransitions(t *testing.T) {
	order := &Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}

	assert.ErrorIs(t, order.Ship("TRACK-1"), ErrInvalidState)

	require.NoError(t, order.MarkAsPaid())
	assert.Equal(t, OrderStatusProcessing, order.Status)
	assert.Equal(t, PaymentStatusSucceeded, order.PaymentStatus)
	assert.ErrorIs(t, order.MarkAsPaid(), ErrInvalidState)

	require.NoError(t, order.Ship("TRACK-1"))
	assert.Equal(t, "TRACK-1", order.TrackingNumber)
	assert.ErrorIs(t, order.Cancel(), ErrInvalidState)

	require.NoError(t, order.Deliver())
	require.NoError(t, order.Return())
	assert.Equal(t, OrderStatusReturned, order.Status)
}

func TestOrder_TransitionToProcessingRequiresPayment(t *testing.T) {
	order := &Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}
	assert.ErrorIs(t, order.TransitionTo(OrderStatusProcessing, ""), ErrInvalidState)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, PaymentStatusPending, order.PaymentStatus)
}

func TestOrder_TransitionToUnknownStatus(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	err := order.TransitionTo("teleported", "")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "status")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrder_ApplyRefund(t *testing.T) {
	order := &Order{
		Status:        OrderStatusProcessing,
		PaymentStatus: PaymentStatusSucceeded,
		Total:         decimal.RequireFromString("100.00"),
	}

	require.NoError(t, order.ApplyRefund(decimal.RequireFromString("40")))
	assert.Equal(t, PaymentStatusPartiallyRefunded, order.PaymentStatus)
	assert.True(t, order.RefundableAmount().Equal(decimal.RequireFromString("60")))

	assert.ErrorIs(t, order.ApplyRefund(decimal.RequireFromString("61")), ErrValidation)

	require.NoError(t, order.ApplyRefund(decimal.RequireFromString("60")))
	assert.Equal(t, PaymentStatusRefunded, order.PaymentStatus)
	assert.True(t, order.RefundableAmount().IsZero())
}

func TestPayment_FinalStatesAreSticky(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	now := time.Now()

	require.NoError(t, p.MarkSucceeded("ch_1", now))
	assert.True(t, p.IsFinal())
	assert.ErrorIs(t, p.MarkFailed("card_declined", "declined", now), ErrInvalidState)
	require.NoError(t, p.MarkRefunded())
	assert.ErrorIs(t, p.MarkRefunded(), ErrInvalidState)
}

func TestUser_Lockout(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(LockoutDuration)
	u := &User{FailedLoginAttempts: 2, LockoutEnd: &end}

	assert.True(t, u.IsLockedOut(now))
	assert.False(t, u.IsLockedOut(now.Add(LockoutDuration+time.Second)))

	u.RecordSuccessfulLogin(now)
	assert.False(t, u.IsLockedOut(now))
	assert.Zero(t, u.FailedLoginAttempts)
	require.NotNil(t, u.LastLoginAt)
}

func TestCategory_PlaceUnder(t *testing.T) {
	root := &Category{Entity: Entity{ID: uuid.New()}, Slug: "electronics"}
	root.PlaceUnder(nil)
	assert.Equal(t, "/electronics", root.Path)
	assert.Equal(t, 0, root.Level)

	child := &Category{Slug: "phones"}
	child.PlaceUnder(root)
	assert.Equal(t, "/electronics/phones", child.Path)
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, root.ID, *child.ParentID)

	assert.True(t, root.IsAncestorOf(child))
	assert.False(t, child.IsAncestorOf(root))
	assert.False(t, root.IsAncestorOf(&Category{Path: "/electronics-outlet"}))
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{Page: 0, PageSize: 1000}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	page := NewPage[int](nil, PageRequest{Page: 2, PageSize: 10}, 21)
	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestVariant_EffectivePrice(t *testing.T) {
	product := &Product{BasePrice: decimal.RequireFromString("10.00")}
	v := &ProductVariant{IsActive: true, StockQuantity: 2}
	assert.True(t, v.EffectivePrice(product).Equal(decimal.RequireFromString("10")))

	price := decimal.RequireFromString("12.50")
	v.Price = &price
	assert.True(t, v.EffectivePrice(product).Equal(price))

	assert.True(t, v.CanReserve(2))
	assert.False(t, v.CanReserve(3))
	assert.False(t, v.CanReserve(0))
}

func TestVariantEvent_KeepsSellOutToZero(t *testing.T) {
	raw, err := json.Marshal(VariantEvent{Type: EventVariantStockChanged, VariantID: uuid.New(), ProductID: uuid.New(), OldStock: 1, NewStock: 0})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"new_stock":0`)
}
