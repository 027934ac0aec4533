package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// OrderReadRepository serves order views straight from SQL.
type OrderReadRepository interface {
	GetDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.OrderSummary, int64, error)
}

// SQLOrderReadRepository builds its queries with squirrel.
type SQLOrderReadRepository struct {
	db *database.DB
}

func NewSQLOrderReadRepository(db *database.DB) *SQLOrderReadRepository {
	return &SQLOrderReadRepository{db: db}
}

// GetDetail loads the order header, its shipping address, items and payments.
func (r *SQLOrderReadRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	q := r.db.Querier(ctx)

	query, args, err := r.db.Builder().
		Select("id", "user_id", "shipping_address_id", "status", "payment_status", "subtotal", "tax",
			"shipping_cost", "total", "refunded_amount", "currency", "tracking_number", "version",
			"created_at", "updated_at").
		From("orders").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		o         models.OrderDetail
		addressID uuid.UUID
		tracking  sql.NullString
	)
	err = q.QueryRowContext(ctx, query, args...).Scan(
		&o.ID, &o.UserID, &addressID, &o.Status, &o.PaymentStatus, &o.Subtotal, &o.Tax,
		&o.ShippingCost, &o.Total, &o.RefundedAmount, &o.Currency, &tracking, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	o.TrackingNumber = tracking.String

	if o.ShippingAddress, err = r.address(ctx, q, addressID); err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, q, o.ID); err != nil {
		return nil, err
	}
	if o.Payments, err = r.payments(ctx, q, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// address returns nil when the address was deleted after the order was placed.
func (r *SQLOrderReadRepository) address(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Address, error) {
	query, args, err := r.db.Builder().
		Select("id", "user_id", "address_line1", "address_line2", "city", "state", "postal_code",
			"country", "phone", "is_default", "address_type", "created_at", "updated_at").
		From("addresses").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		a                   models.Address
		line2, state, phone sql.NullString
	)
	err = q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.UserID, &a.AddressLine1, &line2, &a.City, &state, &a.PostalCode,
		&a.Country, &phone, &a.IsDefault, &a.AddressType, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("order address: %w", err)
	}
	a.AddressLine2, a.State, a.Phone = line2.String, state.String, phone.String
	return &a, nil
}

func (r *SQLOrderReadRepository) items(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.OrderItemDetail, error) {
	query, args, err := r.db.Builder().
		Select("id", "product_id", "variant_id", "quantity", "unit_price", "total_price", "product_data").
		From("order_items").
		Where(sq.Eq{"order_id": orderID.String()}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItemDetail{}
	for rows.Next() {
		var (
			item      models.OrderItemDetail
			variantID uuid.NullUUID
			snapshot  datatypes.JSONMap
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &variantID, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &snapshot); err != nil {
			return nil, err
		}
		if variantID.Valid {
			item.VariantID = &variantID.UUID
		}
		item.ProductName, _ = snapshot["name"].(string)
		item.SKU, _ = snapshot["sku"].(string)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SQLOrderReadRepository) payments(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.PaymentSummary, error) {
	query, args, err := r.db.Builder().
		Select("id", "amount", "currency", "method", "provider", "status", "external_reference",
			"error_code", "processed_at", "created_at").
		From("payments").
		Where(sq.Eq{"order_id": orderID.String()}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order payments: %w", err)
	}
	defer rows.Close()

	payments := []models.PaymentSummary{}
	for rows.Next() {
		var (
			p           models.PaymentSummary
			reference   sql.NullString
			errorCode   sql.NullString
			processedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Amount, &p.Currency, &p.Method, &p.Provider, &p.Status,
			&reference, &errorCode, &processedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ExternalReference = nullString(reference)
		p.ErrorCode = errorCode.String
		if processedAt.Valid {
			p.ProcessedAt = &processedAt.Time
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// List returns one page of orders, newest first.
func (r *SQLOrderReadRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.OrderSummary, int64, error) {
	page := filter.PageRequest.Normalize()
	q := r.db.Querier(ctx)

	where := sq.And{}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"o.user_id": filter.UserID.String()})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"o.status": string(filter.Status)})
	}

	countQuery, countArgs, err := r.db.Builder().Select("COUNT(*)").From("orders o").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := q.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query, args, err := r.db.Builder().
		Select("o.id", "o.user_id", "o.status", "o.payment_status", "o.total", "o.currency", "o.created_at",
			"(SELECT COALESCE(SUM(i.quantity), 0) FROM order_items i WHERE i.order_id = o.id)").
		From("orders o").
		Where(where).
		OrderBy("o.created_at DESC", "o.id").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderSummary{}
	for rows.Next() {
		var o models.OrderSummary
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.Total, &o.Currency, &o.CreatedAt, &o.ItemCount); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}
