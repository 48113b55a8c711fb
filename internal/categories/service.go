package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minSearchLength = 2

type categoryRepository interface {
	List(ctx context.Context, params pagination.Params, includeInactive bool) ([]models.Category, int64, error)
	ListActive(ctx context.Context) ([]models.Category, error)
	Search(ctx context.Context, term string) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service is the category catalog. Role checks happen at the router.
type Service interface {
	List(ctx context.Context, params pagination.Params, includeInactive bool) (*pagination.Page[CategoryDTO], error)
	ListActive(ctx context.Context) ([]CategoryDTO, error)
	Search(ctx context.Context, term string) ([]CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	Create(ctx context.Context, req CategoryRequest) (*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleStatus(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
}

type service struct {
	repo categoryRepository
}

func NewService(repo categoryRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, includeInactive bool) (*pagination.Page[CategoryDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, params, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	page := pagination.NewPage(fromModels(rows), params, total)
	return &page, nil
}

func (s *service) ListActive(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return fromModels(rows), nil
}

func (s *service) Search(ctx context.Context, term string) ([]CategoryDTO, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < minSearchLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term must be at least 2 characters")
	}
	rows, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search categories")
	}
	return fromModels(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(category), nil
}

func (s *service) Create(ctx context.Context, req CategoryRequest) (*CategoryDTO, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, nil); err != nil {
		return nil, err
	}
	category := &models.Category{Name: name, IsActive: true}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return FromModel(category), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
		if err := s.ensureNameFree(ctx, name, &id); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if _, err := s.repo.Update(ctx, id, updates); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func (s *service) ToggleStatus(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Update(ctx, id, map[string]any{"is_active": !category.IsActive}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle category")
	}
	return s.Get(ctx, id)
}

func (s *service) ensureNameFree(ctx context.Context, name string, exclude *uuid.UUID) error {
	taken, err := s.repo.NameTaken(ctx, name, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category name")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

// normalizeName trims and capitalizes: "  summer SALE " becomes "Summer sale".
func normalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name must be between 2 and 50 characters").
			WithDetails(map[string]any{"field": "name"})
	}
	runes := []rune(strings.ToLower(name))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes), nil
}
