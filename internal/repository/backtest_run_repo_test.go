package repository

import (
	"context"
	"testing"

	"golang-backtest/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type capturedQuery struct {
	sql  string
	vars []interface{}
}

// newDryRunDB builds statements without a database connection and records the
// last query it would have sent.
func newDryRunDB(t *testing.T) (*gorm.DB, *capturedQuery) {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	captured := &capturedQuery{}
	err = db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		captured.sql = tx.Statement.SQL.String()
		captured.vars = tx.Statement.Vars
	})
	require.NoError(t, err)
	return db, captured
}

func TestBacktestRunRepository_Get(t *testing.T) {
	tests := []struct {
		name        string
		param       model.GetBacktestRunParam
		contains    []string
		notContains []string
		vars        []interface{}
	}{
		{
			name:        "no filters",
			param:       model.GetBacktestRunParam{},
			contains:    []string{"ORDER BY created_at DESC"},
			notContains: []string{"WHERE", `"report"`},
		},
		{
			name:     "ticker and strategy",
			param:    model.GetBacktestRunParam{Ticker: "AAPL", Strategy: "sma_crossover"},
			contains: []string{"ticker = $1", "strategy = $2"},
			vars:     []interface{}{"AAPL", "sma_crossover"},
		},
		{
			name:     "source only",
			param:    model.GetBacktestRunParam{Source: model.SourceJob},
			contains: []string{"source = $1"},
			vars:     []interface{}{model.SourceJob},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, captured := newDryRunDB(t)
			repo := NewBacktestRunRepository(db)

			_, err := repo.Get(context.Background(), tt.param)
			require.NoError(t, err)

			for _, s := range tt.contains {
				assert.Contains(t, captured.sql, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, captured.sql, s)
			}
			if tt.vars != nil {
				require.GreaterOrEqual(t, len(captured.vars), len(tt.vars))
				assert.Equal(t, tt.vars, captured.vars[:len(tt.vars)])
			}
		})
	}
}
