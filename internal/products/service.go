package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const minSearchLength = 2

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, params pagination.Params, filters Filters) ([]models.Product, int64, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service exposes catalog reads and the merchant/admin mutations.
type Service interface {
	ListActive(ctx context.Context, params pagination.Params) (*pagination.Page[ProductDTO], error)
	Filter(ctx context.Context, query FilterQuery, params pagination.Params) (*pagination.Page[ProductDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, req ProductRequest) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   productRepository
	logger *logger.Logger
}

// NewService builds a product service.
func NewService(repo productRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) ListActive(ctx context.Context, params pagination.Params) (*pagination.Page[ProductDTO], error) {
	active := true
	return s.list(ctx, params, Filters{IsActive: &active})
}

func (s *service) Filter(ctx context.Context, query FilterQuery, params pagination.Params) (*pagination.Page[ProductDTO], error) {
	filters, err := parseFilters(query)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, params, filters)
}

func (s *service) list(ctx context.Context, params pagination.Params, filters Filters) (*pagination.Page[ProductDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	page := pagination.NewPage(newProductDTOs(rows), params, total)
	return &page, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

func (s *service) Create(ctx context.Context, req ProductRequest) (*ProductDTO, error) {
	gender, err := parseGender(req.Gender)
	if err != nil {
		return nil, err
	}
	sizes, err := normalizeSizes(req.Sizes)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return nil, fieldError("name", "name is required and must be at most 100 characters")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" || utf8.RuneCountInString(description) > 1000 {
		return nil, fieldError("description", "description is required and must be at most 1000 characters")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, fieldError("image_url", "image url is required")
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: description,
		Color:       strings.TrimSpace(req.Color),
		Sizes:       sizes,
		Gender:      gender,
		Price:       req.Price.Round(2),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	s.logger.Info(s.logger.WithField(ctx, "product_id", product.ID.String()), "product created")
	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || utf8.RuneCountInString(name) > 100 {
			return nil, fieldError("name", "name must be between 1 and 100 characters")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" || utf8.RuneCountInString(description) > 1000 {
			return nil, fieldError("description", "description must be between 1 and 1000 characters")
		}
		updates["description"] = description
	}
	if req.Color != nil {
		updates["color"] = strings.TrimSpace(*req.Color)
	}
	if req.Sizes != nil {
		sizes, err := normalizeSizes(req.Sizes)
		if err != nil {
			return nil, err
		}
		updates["sizes"] = pq.StringArray(sizes)
	}
	if req.Gender != nil {
		gender, err := parseGender(*req.Gender)
		if err != nil {
			return nil, err
		}
		updates["gender"] = gender
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.ImageURL != nil {
		updates["image_url"] = strings.TrimSpace(*req.ImageURL)
	}
	if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if _, err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	exists, err := s.repo.CategoryExists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup category")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func parseFilters(q FilterQuery) (Filters, error) {
	var f Filters
	if v := strings.TrimSpace(q.MinPrice); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return f, fieldError("min_price", "min_price must be a non-negative number")
		}
		f.MinPrice = &d
	}
	if v := strings.TrimSpace(q.MaxPrice); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return f, fieldError("max_price", "max_price must be a non-negative number")
		}
		f.MaxPrice = &d
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, fieldError("min_price", "min_price cannot exceed max_price")
	}
	f.Color = strings.TrimSpace(q.Color)
	if v := strings.TrimSpace(q.Gender); v != "" {
		g, err := parseGender(v)
		if err != nil {
			return f, err
		}
		f.Gender = &g
	}
	if v := strings.TrimSpace(q.CategoryID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fieldError("category_id", "category_id must be a uuid")
		}
		f.CategoryID = &id
	}
	if v := strings.TrimSpace(q.Search); v != "" {
		if utf8.RuneCountInString(v) < minSearchLength {
			return f, fieldError("search", "search term must be at least 2 characters")
		}
		f.Search = v
	}
	switch strings.ToLower(strings.TrimSpace(q.Status)) {
	case "", "active":
		active := true
		f.IsActive = &active
	case "inactive":
		inactive := false
		f.IsActive = &inactive
	case "all":
	default:
		return f, fieldError("status", "status must be active, inactive or all")
	}
	return f, nil
}

func parseGender(raw string) (enums.Gender, error) {
	g, err := enums.ParseGender(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gender").
			WithDetails(map[string]any{"field": "gender"})
	}
	return g, nil
}

func normalizeSizes(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, size := range raw {
		size = strings.TrimSpace(size)
		if size == "" {
			continue
		}
		out = append(out, size)
	}
	if len(out) == 0 {
		return nil, fieldError("sizes", "at least one size is required")
	}
	return out, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fieldError("price", "price must be zero or greater")
	}
	return nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
