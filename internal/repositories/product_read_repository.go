package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// ProductReadRepository serves denormalised product views straight from SQL.
type ProductReadRepository interface {
	GetDetail(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error)
	GetDetailBySlug(ctx context.Context, slug string) (*models.ProductDetail, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.ProductSummary, int64, error)
}

// SQLProductReadRepository builds its queries with squirrel.
type SQLProductReadRepository struct {
	db *database.DB
}

func NewSQLProductReadRepository(db *database.DB) *SQLProductReadRepository {
	return &SQLProductReadRepository{db: db}
}

var productDetailColumns = []string{
	"id", "name", "slug", "description", "base_price", "currency", "sku",
	"is_active", "metadata", "version", "created_at", "updated_at",
}

func (r *SQLProductReadRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error) {
	return r.getDetail(ctx, sq.Eq{"id": id.String()}, fmt.Sprintf("product %s", id))
}

func (r *SQLProductReadRepository) GetDetailBySlug(ctx context.Context, slug string) (*models.ProductDetail, error) {
	return r.getDetail(ctx, sq.Eq{"slug": slug}, fmt.Sprintf("product '%s'", slug))
}

func (r *SQLProductReadRepository) getDetail(ctx context.Context, where sq.Eq, label string) (*models.ProductDetail, error) {
	q := r.db.Querier(ctx)

	query, args, err := r.db.Builder().Select(productDetailColumns...).From("products").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	var (
		p        models.ProductDetail
		metadata datatypes.JSONMap
		sku      sql.NullString
	)
	err = q.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.BasePrice, &p.Currency, &sku,
		&p.IsActive, &metadata, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", label, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	p.SKU = nullString(sku)
	p.Metadata = metadata

	if p.Categories, err = r.categories(ctx, q, p.ID); err != nil {
		return nil, err
	}
	if p.Attributes, err = r.attributes(ctx, q, p.ID); err != nil {
		return nil, err
	}
	if p.Variants, err = r.variants(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLProductReadRepository) categories(ctx context.Context, q database.Querier, productID uuid.UUID) ([]models.CategorySummary, error) {
	query, args, err := r.db.Builder().
		Select("c.id", "c.name", "c.slug").
		From("categories c").
		Join("product_categories pc ON pc.category_id = c.id").
		Where(sq.Eq{"pc.product_id": productID.String()}).
		OrderBy("c.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("product categories: %w", err)
	}
	defer rows.Close()

	categories := []models.CategorySummary{}
	for rows.Next() {
		var c models.CategorySummary
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLProductReadRepository) attributes(ctx context.Context, q database.Querier, productID uuid.UUID) ([]models.AttributeValue, error) {
	query, args, err := r.db.Builder().
		Select("a.id", "a.name", "a.display_name", "a.type", "pa.value").
		From("product_attributes pa").
		Join("attributes a ON a.id = pa.attribute_id").
		Where(sq.Eq{"pa.product_id": productID.String()}).
		OrderBy("a.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("product attributes: %w", err)
	}
	defer rows.Close()

	values := []models.AttributeValue{}
	for rows.Next() {
		var (
			v     models.AttributeValue
			value datatypes.JSONMap
		)
		if err := rows.Scan(&v.AttributeID, &v.Name, &v.DisplayName, &v.Type, &value); err != nil {
			return nil, err
		}
		v.Value = value
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *SQLProductReadRepository) variants(ctx context.Context, q database.Querier, p *models.ProductDetail) ([]models.VariantDetail, error) {
	query, args, err := r.db.Builder().
		Select("id", "product_id", "sku", "price", "stock_quantity", "is_active", "metadata", "version", "created_at", "updated_at").
		From("product_variants").
		Where(sq.Eq{"product_id": p.ID.String()}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("product variants: %w", err)
	}
	defer rows.Close()

	variants := []models.VariantDetail{}
	index := map[uuid.UUID]int{}
	var ids []string
	for rows.Next() {
		var (
			v        models.VariantDetail
			sku      sql.NullString
			price    decimal.NullDecimal
			metadata datatypes.JSONMap
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &sku, &price, &v.StockQuantity, &v.IsActive, &metadata, &v.Version, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.SKU = nullString(sku)
		v.EffectivePrice = p.BasePrice
		if price.Valid {
			v.Price = &price.Decimal
			v.EffectivePrice = price.Decimal
		}
		v.Metadata = metadata
		v.Attributes = []models.AttributeValue{}
		index[v.ID] = len(variants)
		ids = append(ids, v.ID.String())
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return variants, nil
	}

	query, args, err = r.db.Builder().
		Select("va.variant_id", "a.id", "a.name", "a.display_name", "a.type", "va.value").
		From("variant_attributes va").
		Join("attributes a ON a.id = va.attribute_id").
		Where(sq.Eq{"va.variant_id": ids}).
		OrderBy("a.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	attrRows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("variant attributes: %w", err)
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var (
			variantID uuid.UUID
			v         models.AttributeValue
			value     datatypes.JSONMap
		)
		if err := attrRows.Scan(&variantID, &v.AttributeID, &v.Name, &v.DisplayName, &v.Type, &value); err != nil {
			return nil, err
		}
		v.Value = value
		if i, ok := index[variantID]; ok {
			variants[i].Attributes = append(variants[i].Attributes, v)
		}
	}
	return variants, attrRows.Err()
}

var productSortColumns = map[string]string{
	"name":       "p.name",
	"price":      "p.base_price",
	"created_at": "p.created_at",
}

// List returns one page of product summaries plus the total match count.
func (r *SQLProductReadRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.ProductSummary, int64, error) {
	page := filter.PageRequest.Normalize()
	q := r.db.Querier(ctx)

	where := sq.And{}
	if filter.ActiveOnly {
		where = append(where, sq.Eq{"p.is_active": true})
	}
	if filter.CategoryID != nil {
		where = append(where, sq.Expr(
			"EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = ?)",
			filter.CategoryID.String(),
		))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, sq.Expr(
			"(LOWER(p.name) LIKE ? ESCAPE '\\' OR LOWER(p.description) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(p.sku, '')) LIKE ? ESCAPE '\\')",
			pattern, pattern, pattern,
		))
	}

	countQuery, countArgs, err := r.db.Builder().Select("COUNT(*)").From("products p").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := q.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	sortColumn, ok := productSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "p.created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	query, args, err := r.db.Builder().
		Select(
			"p.id", "p.name", "p.slug", "p.base_price", "p.currency", "p.sku", "p.is_active", "p.created_at",
			"(SELECT COUNT(*) FROM product_variants v WHERE v.product_id = p.id)",
			"(SELECT COALESCE(SUM(v.stock_quantity), 0) FROM product_variants v WHERE v.product_id = p.id)",
		).
		From("products p").
		Where(where).
		OrderBy(sortColumn+" "+direction, "p.id").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.ProductSummary{}
	for rows.Next() {
		var (
			s   models.ProductSummary
			sku sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.BasePrice, &s.Currency, &sku, &s.IsActive, &s.CreatedAt, &s.VariantCount, &s.TotalStock); err != nil {
			return nil, 0, err
		}
		s.SKU = nullString(sku)
		products = append(products, s)
	}
	return products, total, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
