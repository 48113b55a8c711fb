package users

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes account and favorite persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByEmail retrieves the account matching the normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// ExistsByEmail reports whether an account already uses email.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// FindByID loads an account by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByResetTokenHash loads the account holding an unexpired reset token digest.
func (r *Repository) FindByResetTokenHash(ctx context.Context, digest string, now time.Time) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", digest, now).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// List returns a page of accounts ordered newest first.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Account, int64, error) {
	var (
		rows  []models.Account
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.Account{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := params.Normalize()
	err := q.Order("created_at DESC").Order("id DESC").Limit(p.Limit).Offset(p.Offset()).Find(&rows).Error
	return rows, total, err
}

// Update applies column updates to an account.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateLastLogin refreshes the account's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash stores a new hash and clears any pending reset token.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":          hash,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		}).Error
}

// SetResetToken stores a reset token digest with its expiry.
func (r *Repository) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":       digest,
			"reset_token_expires_at": expiresAt,
		}).Error
}

// ConsumeResetToken swaps the password only if the token digest is still
// present, so concurrent resets with the same token apply at most once.
func (r *Repository) ConsumeResetToken(ctx context.Context, id uuid.UUID, digest, hash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND reset_token_hash = ?", id, digest).
		Updates(map[string]any{
			"password_hash":          hash,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	return res.RowsAffected == 1, res.Error
}

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	return res.RowsAffected > 0, res.Error
}

// AddFavorite links a product to an account.
func (r *Repository) AddFavorite(ctx context.Context, accountID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&models.Favorite{AccountID: accountID, ProductID: productID}).Error
}

// RemoveFavorite unlinks a product; it reports whether a row was removed.
func (r *Repository) RemoveFavorite(ctx context.Context, accountID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("account_id = ? AND product_id = ?", accountID, productID).
		Delete(&models.Favorite{})
	return res.RowsAffected > 0, res.Error
}

// ListFavoriteProducts returns the favorited products, most recent first.
func (r *Repository) ListFavoriteProducts(ctx context.Context, accountID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Joins("JOIN favorites ON favorites.product_id = products.id").
		Where("favorites.account_id = ?", accountID).
		Order("favorites.created_at DESC").
		Find(&products).Error
	return products, err
}

// ProductExists reports whether a product row exists.
func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error
	return count > 0, err
}

// FindPublicByID loads an account without its credential columns.
func (r *Repository) FindPublicByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Omit("password_hash", "reset_token_hash", "reset_token_expires_at").
		First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}
