package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Base carries the connection a settlement repository runs on. Repositories
// embed it and rebind it to a transaction with Bind.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base running on tx. A nil tx keeps the current connection.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// First loads the first row matching query into dest, translating a missing
// row into notFound.
func (b Base) First(ctx context.Context, dest any, notFound error, query any, args ...any) error {
	err := b.DB(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// Touched reports a write that must hit a row: a result with no affected
// rows becomes notFound.
func Touched(res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}

// Swapped reports whether a guarded update (WHERE status = from) won. Losing
// the race is not an error; the caller decides how to surface it.
func Swapped(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
