package repository

import (
	"context"

	"golang-backtest/pkg/utils"

	"gorm.io/gorm"
)

// UnitOfWork runs repository calls inside one database transaction. fn must
// forward the given options to every repository call it makes.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{
		db: db,
	}
}

// Run commits when fn returns nil and rolls back on error or panic.
func (u *unitOfWork) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(utils.WithTx(tx))
	})
}
