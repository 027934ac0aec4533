package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/cache"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

// CreateAttributeCommand defines a new attribute.
type CreateAttributeCommand struct {
	Name          string               `json:"name" validate:"required,max=100"`
	DisplayName   string               `json:"display_name" validate:"required,max=100"`
	Type          models.AttributeType `json:"type" validate:"required"`
	Filterable    bool                 `json:"filterable"`
	Searchable    bool                 `json:"searchable"`
	IsVariant     bool                 `json:"is_variant"`
	Configuration map[string]any       `json:"configuration"`
}

// UpdateAttributeCommand changes everything but the name.
type UpdateAttributeCommand struct {
	DisplayName   string         `json:"display_name" validate:"required,max=100"`
	Filterable    bool           `json:"filterable"`
	Searchable    bool           `json:"searchable"`
	IsVariant     bool           `json:"is_variant"`
	Configuration map[string]any `json:"configuration"`
	Version       *int           `json:"version"`
}

type AttributeService struct {
	repo   repositories.AttributeRepository
	tx     Transactor
	events EventWriter
	cache  cache.Cache
	ttl    time.Duration
}

func NewAttributeService(repo repositories.AttributeRepository, tx Transactor, events EventWriter, c cache.Cache, ttl time.Duration) *AttributeService {
	return &AttributeService{repo: repo, tx: tx, events: events, cache: c, ttl: ttl}
}

func (s *AttributeService) Create(ctx context.Context, cmd CreateAttributeCommand) (*models.Attribute, error) {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	verr := &models.ValidationError{}
	if !attributeNames.MatchString(name) {
		verr.Add("name", "must start with a letter and contain only lowercase letters, digits and underscores")
	}
	if !cmd.Type.Valid() {
		verr.Add("type", fmt.Sprintf("unknown attribute type '%s'", cmd.Type))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	attribute := &models.Attribute{
		Name:          name,
		DisplayName:   strings.TrimSpace(cmd.DisplayName),
		Type:          cmd.Type,
		Filterable:    cmd.Filterable,
		Searchable:    cmd.Searchable,
		IsVariant:     cmd.IsVariant,
		Configuration: cmd.Configuration,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByName(ctx, name); err == nil {
			return models.AlreadyExists("attribute", "name", name)
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if err := s.repo.Create(ctx, attribute); err != nil {
			return err
		}
		return s.events.Add(ctx, models.AttributeEvent{Type: models.EventAttributeCreated, AttributeID: attribute.ID, Name: attribute.Name})
	})
	if err != nil {
		return nil, err
	}
	return attribute, nil
}

func (s *AttributeService) Update(ctx context.Context, id uuid.UUID, cmd UpdateAttributeCommand) (*models.Attribute, error) {
	var attribute *models.Attribute
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		attribute, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion("attribute", id, attribute.Version, cmd.Version); err != nil {
			return err
		}

		attribute.DisplayName = strings.TrimSpace(cmd.DisplayName)
		attribute.Filterable = cmd.Filterable
		attribute.Searchable = cmd.Searchable
		attribute.IsVariant = cmd.IsVariant
		attribute.Configuration = cmd.Configuration
		if err := s.repo.Update(ctx, attribute); err != nil {
			return err
		}
		return s.events.Add(ctx, models.AttributeEvent{Type: models.EventAttributeUpdated, AttributeID: attribute.ID, Name: attribute.Name})
	})
	if err != nil {
		return nil, err
	}
	return attribute, nil
}

// Delete removes an attribute that no product or variant uses.
func (s *AttributeService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		attribute, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := s.repo.IsInUse(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("attribute '%s' is used by products or variants: %w", attribute.Name, models.ErrInvalidState)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.events.Add(ctx, models.AttributeEvent{Type: models.EventAttributeDeleted, AttributeID: id, Name: attribute.Name})
	})
}

func (s *AttributeService) Get(ctx context.Context, id uuid.UUID) (*models.Attribute, error) {
	return cached(ctx, s.cache, cache.AttributeKey(id), s.ttl, func() (*models.Attribute, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *AttributeService) List(ctx context.Context, page models.PageRequest) (*models.Page[models.Attribute], error) {
	page = page.Normalize()
	key := cache.ListKey(cache.AttributesPrefix, "page="+fmt.Sprint(page.Page), "size="+fmt.Sprint(page.PageSize))
	return cached(ctx, s.cache, key, s.ttl, func() (*models.Page[models.Attribute], error) {
		items, total, err := s.repo.List(ctx, page)
		if err != nil {
			return nil, err
		}
		p := models.NewPage(items, page, total)
		return &p, nil
	})
}
