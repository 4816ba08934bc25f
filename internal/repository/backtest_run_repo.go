package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang-backtest/internal/model"
	"golang-backtest/pkg/utils"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

type BacktestRunRepository interface {
	Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error
	Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error)
	FindByID(ctx context.Context, id uint) (*model.BacktestRun, error)
	DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type backtestRunRepository struct {
	db *gorm.DB
}

func NewBacktestRunRepository(db *gorm.DB) BacktestRunRepository {
	return &backtestRunRepository{db: db}
}

func (r *backtestRunRepository) Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(run).Error
}

// Get lists runs newest first. The heavy report column is not selected.
func (r *backtestRunRepository) Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error) {
	var runs []model.BacktestRun

	opts = slices.Clip(opts)
	if param.Ticker != "" {
		opts = append(opts, utils.WithWhere("ticker = ?", param.Ticker))
	}
	if param.Strategy != "" {
		opts = append(opts, utils.WithWhere("strategy = ?", param.Strategy))
	}
	if param.Source != "" {
		opts = append(opts, utils.WithWhere("source = ?", param.Source))
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.BacktestRun{}).
		Omit("report")
	if param.Limit > 0 {
		db = db.Limit(param.Limit)
	}
	if param.Offset > 0 {
		db = db.Offset(param.Offset)
	}

	if err := db.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *backtestRunRepository) FindByID(ctx context.Context, id uint) (*model.BacktestRun, error) {
	var run model.BacktestRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *backtestRunRepository) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("created_at < ?", date).
		Delete(&model.BacktestRun{})
	return result.RowsAffected, result.Error
}
