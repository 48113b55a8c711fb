package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type accountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	List(ctx context.Context, params pagination.Params) ([]models.Account, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	AddFavorite(ctx context.Context, accountID, productID uuid.UUID) error
	RemoveFavorite(ctx context.Context, accountID, productID uuid.UUID) (bool, error)
	ListFavoriteProducts(ctx context.Context, accountID uuid.UUID) ([]models.Product, error)
}

// Service exposes account administration and favorites.
type Service interface {
	List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[AccountDTO], error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*AccountDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateAccountRequest) (*AccountDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	ListFavorites(ctx context.Context, actor auth.Actor, accountID uuid.UUID) ([]FavoriteProductDTO, error)
	AddFavorite(ctx context.Context, actor auth.Actor, accountID, productID uuid.UUID) error
	RemoveFavorite(ctx context.Context, actor auth.Actor, accountID, productID uuid.UUID) error
}

type service struct {
	repo   accountRepository
	logger *logger.Logger
}

// NewService builds the accounts service.
func NewService(repo accountRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[AccountDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	page := pagination.NewPage(FromModels(rows), params, total)
	return &page, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*AccountDTO, error) {
	if err := actor.RequireOwnerOrAdmin(id, "account"); err != nil {
		return nil, err
	}
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(account), nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateAccountRequest) (*AccountDTO, error) {
	if err := actor.RequireOwnerOrAdmin(id, "account"); err != nil {
		return nil, err
	}
	if (req.Role != nil || req.MerchantID != nil) && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may change role or merchant linkage")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		role, err := enums.ParseRole(*req.Role)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
		}
		updates["role"] = role
	}
	if req.MerchantID != nil {
		updates["merchant_id"] = *req.MerchantID
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account")
		}
		if role, ok := updates["role"]; ok {
			ctx = s.logger.WithFields(ctx, map[string]any{"target_account_id": id.String(), "new_role": fmt.Sprint(role)})
			s.logger.Info(ctx, "account role changed")
		}
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(account), nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete account")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return nil
}

func (s *service) ListFavorites(ctx context.Context, actor auth.Actor, accountID uuid.UUID) ([]FavoriteProductDTO, error) {
	if err := actor.RequireOwnerOrAdmin(accountID, "account"); err != nil {
		return nil, err
	}
	products, err := s.repo.ListFavoriteProducts(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	out := make([]FavoriteProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, favoriteFromProduct(p))
	}
	return out, nil
}

func (s *service) AddFavorite(ctx context.Context, actor auth.Actor, accountID, productID uuid.UUID) error {
	if err := actor.RequireOwnerOrAdmin(accountID, "account"); err != nil {
		return err
	}
	if _, err := s.load(ctx, accountID); err != nil {
		return err
	}
	exists, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.repo.AddFavorite(ctx, accountID, productID); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "product already in favorites")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add favorite")
	}
	return nil
}

func (s *service) RemoveFavorite(ctx context.Context, actor auth.Actor, accountID, productID uuid.UUID) error {
	if err := actor.RequireOwnerOrAdmin(accountID, "account"); err != nil {
		return err
	}
	removed, err := s.repo.RemoveFavorite(ctx, accountID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not in favorites")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}
