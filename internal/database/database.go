// Package database opens the relational store and hands out the two access
// paths used by the repositories: GORM for writes and squirrel-built SQL for reads.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shopilent/internal/config"
	"shopilent/internal/models"
	"shopilent/pkg/logger"
)

// DB bundles the ORM handle with the raw connection pool behind it.
type DB struct {
	Gorm   *gorm.DB
	SQL    *sql.DB
	Driver string
}

// Open connects using the configured driver and applies pool settings.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(cfg.LogQueries, 200*time.Millisecond),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Gorm: gdb, SQL: sqlDB, Driver: cfg.Driver}
	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			return nil, err
		}
	}

	logger.Info(context.Background(), "Database connected", "driver", cfg.Driver)
	return db, nil
}

// Migrate creates or updates every table.
func (d *DB) Migrate() error {
	err := d.Gorm.AutoMigrate(
		&models.Attribute{},
		&models.Category{},
		&models.Product{},
		&models.ProductCategory{},
		&models.ProductAttribute{},
		&models.ProductVariant{},
		&models.VariantAttribute{},
		&models.User{},
		&models.RefreshToken{},
		&models.Address{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Builder returns a squirrel builder using the driver's placeholder style.
func (d *DB) Builder() squirrel.StatementBuilderType {
	if d.Driver == "postgres" {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

type txKey struct{}

// WithinTransaction runs fn with a context carrying an open transaction.
// Repositories called with that context join it. Nested calls reuse the
// outer transaction.
func (d *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return d.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn returns the transaction bound to ctx, or the pool.
func (d *DB) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.Gorm.WithContext(ctx)
}

// Querier is the subset of *sql.DB and *sql.Tx used by the read repositories.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier returns the raw transaction bound to ctx, or the pool.
func (d *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		if sqlTx, ok := tx.Statement.ConnPool.(*sql.Tx); ok {
			return sqlTx
		}
	}
	return d.SQL
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// GormLogger forwards GORM's logging to the application logger.
type GormLogger struct {
	enabled            bool
	slowQueryThreshold time.Duration
}

// NewGormLogger creates a GORM logger. Disabled loggers still report failures.
func NewGormLogger(enabled bool, slowQueryThreshold time.Duration) *GormLogger {
	return &GormLogger{enabled: enabled, slowQueryThreshold: slowQueryThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.enabled {
		logger.Info(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	logger.Warn(ctx, msg, "data", data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	logger.Error(ctx, msg, "data", data)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sqlStr, rows := fc()
		logger.Error(ctx, "SQL execution failed", "duration", elapsed, "rows", rows, "sql", sqlStr, "error", err)
	case elapsed > l.slowQueryThreshold:
		sqlStr, rows := fc()
		logger.Warn(ctx, "Slow query detected", "duration", elapsed, "rows", rows, "sql", sqlStr)
	case l.enabled:
		sqlStr, rows := fc()
		logger.Debug(ctx, "SQL executed", "duration", elapsed, "rows", rows, "sql", sqlStr)
	}
}
