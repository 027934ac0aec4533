package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/cache"
	"shopilent/internal/models"
	"shopilent/pkg/logger"
)

// Transactor runs fn inside a transaction carried by the context it receives.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventWriter records domain events in the outbox.
type EventWriter interface {
	Add(ctx context.Context, event models.Event) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
}

func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// checkVersion rejects a client supplied version that no longer matches.
// A nil version means the client did not send one.
func checkVersion(entity string, id uuid.UUID, current int, requested *int) error {
	if requested != nil && *requested != current {
		return fmt.Errorf("%s %s is at version %d, not %d: %w", entity, id, current, *requested, models.ErrConcurrencyConflict)
	}
	return nil
}

// addEvents writes every event, stopping at the first failure.
func addEvents(ctx context.Context, w EventWriter, events ...models.Event) error {
	for _, e := range events {
		if err := w.Add(ctx, e); err != nil {
			return fmt.Errorf("failed to record %s: %w", e.EventType(), err)
		}
	}
	return nil
}

// cached reads key from c, falling back to load and populating the cache.
// Cache failures are logged and never fail the read.
func cached[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, load func() (*T, error)) (*T, error) {
	if c != nil {
		v, ok, err := cache.GetJSON[T](ctx, c, key)
		if err != nil {
			logger.Warn(ctx, "Cache read failed", "key", key, "error", err)
		} else if ok {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := cache.SetJSON(ctx, c, key, v, ttl); err != nil {
			logger.Warn(ctx, "Cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9]+`)
	attributeNames = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// slugify lowercases s and joins its alphanumeric runs with dashes.
func slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// resolveSlug returns the requested slug or one derived from name.
func resolveSlug(requested, name string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" {
		slug = slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return "", models.NewValidationError("slug", "must contain only lowercase letters, digits and single dashes")
	}
	return slug, nil
}
