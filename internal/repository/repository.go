package repository

import (
	"golang-backtest/config"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	JobRepo          JobRepository
	BacktestRunRepo  BacktestRunRepository
	SystemParamRepo  SystemParamRepository
	YahooFinanceRepo YahooFinanceRepository
	BarRepo          *CachedBarRepository
	GeminiAIRepo     AIRepository
	UnitOfWork       UnitOfWork
}

// NewRepository wires every repository. GeminiAIRepo stays nil when no API
// key is configured.
func NewRepository(cfg *config.Config, db *gorm.DB, inmemoryCache cache.Cache, log *logger.Logger) (*Repository, error) {
	yahooRepo := NewYahooFinanceRepository(cfg, log)
	barRepo, err := NewCachedBarRepository(yahooRepo, cfg.BarCache.Capacity, log)
	if err != nil {
		return nil, err
	}

	var geminiAIRepo AIRepository
	if cfg.Gemini.Enabled() {
		geminiAIRepo, err = NewGeminiAIRepository(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	return &Repository{
		JobRepo:          NewJobRepository(db),
		BacktestRunRepo:  NewBacktestRunRepository(db),
		SystemParamRepo:  NewSystemParamRepository(cfg, inmemoryCache, db),
		YahooFinanceRepo: yahooRepo,
		BarRepo:          barRepo,
		GeminiAIRepo:     geminiAIRepo,
		UnitOfWork:       NewUnitOfWork(db),
	}, nil
}
