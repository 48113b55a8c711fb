package repo

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx returns a Base bound to tx, or b itself when tx is nil.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// FindPage counts the rows matched by q and loads the requested page in the
// given order.
func FindPage[T any](q *gorm.DB, params pagination.Params, order ...string) ([]T, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	params = params.Normalize()
	for _, o := range order {
		q = q.Order(o)
	}
	var rows []T
	if err := q.Limit(params.Limit).Offset(params.Offset()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsFold builds a case-insensitive substring condition on column that
// works on Postgres and SQLite.
func ContainsFold(column, term string) (string, string) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
	return "LOWER(" + column + `) LIKE ? ESCAPE '\'`, pattern
}
