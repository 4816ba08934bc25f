package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang-backtest/config"
	"golang-backtest/internal/model"
	"golang-backtest/pkg/cache"

	"gorm.io/gorm"
)

// StrategyDefaults maps a strategy name to param overrides applied before the
// request's own params.
type StrategyDefaults map[string]map[string]float64

type SystemParamRepository interface {
	Get(ctx context.Context, name string, destValue interface{}) error
	GetStrategyDefaults(ctx context.Context) (StrategyDefaults, error)
}

type systemParamRepository struct {
	cfg           *config.Config
	inmemoryCache cache.Cache
	db            *gorm.DB
}

func NewSystemParamRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB) SystemParamRepository {
	return &systemParamRepository{cfg: cfg, inmemoryCache: inmemoryCache, db: db}
}

func (s *systemParamRepository) Get(ctx context.Context, name string, destValue interface{}) error {
	var param model.SystemParameter

	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&param).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if err := json.Unmarshal(param.Value, destValue); err != nil {
		return fmt.Errorf("decode system parameter %s: %w", name, err)
	}
	return nil
}

// GetStrategyDefaults returns an empty set when the parameter is not stored.
func (s *systemParamRepository) GetStrategyDefaults(ctx context.Context) (StrategyDefaults, error) {
	if val, found := cache.GetFromCache[StrategyDefaults](s.inmemoryCache, model.SysParamStrategyDefaults); found {
		return val, nil
	}

	destValue := StrategyDefaults{}
	if err := s.Get(ctx, model.SysParamStrategyDefaults, &destValue); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	s.inmemoryCache.Set(model.SysParamStrategyDefaults, destValue, s.cfg.Cache.DefaultExpiration)
	return destValue, nil
}
