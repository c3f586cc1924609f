package services

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// CategoryService manages a user's income and expense categories.
type CategoryService struct {
	storage *storage.SQLiteRepository
	logger  *log.Logger
}

func NewCategoryService(storage *storage.SQLiteRepository, logger *log.Logger) *CategoryService {
	return &CategoryService{storage: storage, logger: logger.WithComponent(log.ComponentCategory)}
}

// CategoryInput carries create fields and, as pointers, partial updates.
type CategoryInput struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
	Icon *string `json:"icon"`
}

func (s *CategoryService) Create(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	c := core.Category{UserID: userID, Name: deref(in.Name), Icon: deref(in.Icon)}
	if in.Type != nil {
		t, err := core.ParseTransactionType(*in.Type)
		if err != nil {
			return core.Category{}, core.Validationf("Type must be income or expense")
		}
		c.Type = t
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, categoryValidation(err)
	}

	if err := s.storage.CreateCategory(ctx, &c); err != nil {
		if core.KindOf(storageError(err, "")) == core.KindConflict {
			return core.Category{}, core.Conflictf("Category %q already exists", c.Name)
		}
		return core.Category{}, storageError(err, "Category not found")
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID,
		log.FieldEntityID, c.ID,
		log.FieldCategory, c.Name,
		log.FieldType, c.Type)
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	categories, err := s.storage.ListCategories(ctx, userID)
	if err != nil {
		return nil, storageError(err, "")
	}
	return categories, nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id string) (core.Category, error) {
	c, err := s.storage.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, storageError(err, "Category not found")
	}
	if err := owned(c.UserID, userID, "category"); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// Update merges the non-nil fields of in into the stored category.
func (s *CategoryService) Update(ctx context.Context, userID, id string, in CategoryInput) (core.Category, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Icon != nil {
		c.Icon = *in.Icon
	}
	if in.Type != nil {
		t, err := core.ParseTransactionType(*in.Type)
		if err != nil {
			return core.Category{}, core.Validationf("Type must be income or expense")
		}
		c.Type = t
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, categoryValidation(err)
	}

	if err := s.storage.UpdateCategory(ctx, &c); err != nil {
		if errors.Is(err, storage.ErrInUse) {
			return core.Category{}, core.Conflictf("Category type cannot change while transactions use it")
		}
		if core.KindOf(storageError(err, "")) == core.KindConflict {
			return core.Category{}, core.Conflictf("Category %q already exists", c.Name)
		}
		return core.Category{}, storageError(err, "Category not found")
	}
	s.logger.InfoContext(ctx, "Category updated", log.FieldUserID, userID, log.FieldEntityID, id)
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		if core.KindOf(storageError(err, "")) == core.KindConflict {
			return core.Conflictf("Category is used by transactions or budgets")
		}
		return storageError(err, "Category not found")
	}
	s.logger.InfoContext(ctx, "Category deleted", log.FieldUserID, userID, log.FieldEntityID, id)
	return nil
}

func categoryValidation(err error) error {
	switch err {
	case core.ErrEmptyName:
		return core.Validationf("Name is required")
	case core.ErrInvalidType:
		return core.Validationf("Type must be income or expense")
	default:
		return validationError(err)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
