package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopilent/internal/models"
)

// translateError maps driver errors onto the domain sentinels.
func translateError(entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", entity, models.ErrAlreadyExists)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", entity, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// saveVersioned writes every column of model when the stored version still
// equals expected. The caller has already bumped the in-memory version.
func saveVersioned(db *gorm.DB, entity string, model any, id uuid.UUID, expected int) error {
	res := db.Model(model).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Where("version = ?", expected).
		Updates(model)
	if res.Error != nil {
		return translateError(entity, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateError(entity, err)
	}
	if count == 0 {
		return models.NotFound(entity, id)
	}
	return fmt.Errorf("%s %s: %w", entity, id, models.ErrConcurrencyConflict)
}

// likePattern escapes LIKE wildcards in a user supplied search term.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}
