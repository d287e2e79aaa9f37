package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

const universeColumns = `key, COALESCE(ticker, ''), COALESCE(company_name, ''),
	risk_score, quality_score, timing_score, composite_score,
	COALESCE(risk_label, ''), COALESCE(quality_label, ''), COALESCE(timing_label, ''),
	debt_stress_flag, liquidity_risk_flag, dividend_at_risk_flag, fraud_red_flag, other_flags,
	metrics, COALESCE(deep_dive_summary, ''), COALESCE(addon_summary, ''), COALESCE(analyst_notes, ''),
	last_analyzed_at, updated_at`

// UniverseStorage implements UniverseStorage on the investment_universe table
type UniverseStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

var _ interfaces.UniverseStorage = (*UniverseStorage)(nil)

// NewUniverseStorage creates a new UniverseStorage instance
func NewUniverseStorage(pool *pgxpool.Pool, logger arbor.ILogger) *UniverseStorage {
	return &UniverseStorage{pool: pool, logger: logger}
}

func scanUniverseRow(row pgx.Row) (*models.UniverseRow, error) {
	var u models.UniverseRow
	err := row.Scan(
		&u.Key, &u.Ticker, &u.CompanyName,
		&u.Scores.Risk, &u.Scores.Quality, &u.Scores.Timing, &u.Scores.Composite,
		&u.Meta.RiskLabel, &u.Meta.QualityLabel, &u.Meta.TimingLabel,
		&u.Flags.DebtStressFlag, &u.Flags.LiquidityRiskFlag, &u.Flags.DividendAtRiskFlag, &u.Flags.FraudRedFlag, &u.Flags.OtherFlags,
		&u.Metrics, &u.DeepDiveSummary, &u.AddonSummary, &u.AnalystNotes,
		&u.LastAnalyzedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Meta.CompositeScore = u.Scores.Composite
	return &u, nil
}

func (s *UniverseStorage) GetUniverseRow(ctx context.Context, key string) (*models.UniverseRow, error) {
	row, err := scanUniverseRow(s.pool.QueryRow(ctx, `SELECT `+universeColumns+` FROM investment_universe WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("get universe row: %w", err)
	}
	return row, nil
}

// PatchUniverseRow locks the row, applies patch and upserts the result in
// one transaction.
func (s *UniverseStorage) PatchUniverseRow(ctx context.Context, key string, patch *models.UniversePatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin universe patch: %w", err)
	}
	defer tx.Rollback(ctx)

	row, err := scanUniverseRow(tx.QueryRow(ctx, `SELECT `+universeColumns+` FROM investment_universe WHERE key = $1 FOR UPDATE`, key))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		row = &models.UniverseRow{Key: key}
	case err != nil:
		return fmt.Errorf("load universe row: %w", err)
	}

	patch.ApplyTo(row)
	if err := upsertUniverseRow(ctx, tx, row, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit universe patch: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("Universe row patched")
	return nil
}

// SaveUniverseRow replaces a row wholesale. Used to seed the universe.
func (s *UniverseStorage) SaveUniverseRow(ctx context.Context, row *models.UniverseRow) error {
	if row.Key == "" {
		return fmt.Errorf("universe row key is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin universe save: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUniverseRow(ctx, tx, row, time.Now()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertUniverseRow(ctx context.Context, tx pgx.Tx, row *models.UniverseRow, now time.Time) error {
	row.UpdatedAt = now
	_, err := tx.Exec(ctx, `INSERT INTO investment_universe (
			key, ticker, company_name,
			risk_score, quality_score, timing_score, composite_score,
			risk_label, quality_label, timing_label,
			debt_stress_flag, liquidity_risk_flag, dividend_at_risk_flag, fraud_red_flag, other_flags,
			metrics, deep_dive_summary, addon_summary, analyst_notes,
			last_analyzed_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3, ''),
			$4, $5, $6, $7,
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
			$11, $12, $13, $14, $15,
			$16, NULLIF($17, ''), NULLIF($18, ''), NULLIF($19, ''),
			$20, $21
		)
		ON CONFLICT (key) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			company_name = EXCLUDED.company_name,
			risk_score = EXCLUDED.risk_score,
			quality_score = EXCLUDED.quality_score,
			timing_score = EXCLUDED.timing_score,
			composite_score = EXCLUDED.composite_score,
			risk_label = EXCLUDED.risk_label,
			quality_label = EXCLUDED.quality_label,
			timing_label = EXCLUDED.timing_label,
			debt_stress_flag = EXCLUDED.debt_stress_flag,
			liquidity_risk_flag = EXCLUDED.liquidity_risk_flag,
			dividend_at_risk_flag = EXCLUDED.dividend_at_risk_flag,
			fraud_red_flag = EXCLUDED.fraud_red_flag,
			other_flags = EXCLUDED.other_flags,
			metrics = EXCLUDED.metrics,
			deep_dive_summary = EXCLUDED.deep_dive_summary,
			addon_summary = EXCLUDED.addon_summary,
			analyst_notes = EXCLUDED.analyst_notes,
			last_analyzed_at = EXCLUDED.last_analyzed_at,
			updated_at = EXCLUDED.updated_at`,
		row.Key, row.Ticker, row.CompanyName,
		row.Scores.Risk, row.Scores.Quality, row.Scores.Timing, row.Scores.Composite,
		row.Meta.RiskLabel, row.Meta.QualityLabel, row.Meta.TimingLabel,
		row.Flags.DebtStressFlag, row.Flags.LiquidityRiskFlag, row.Flags.DividendAtRiskFlag, row.Flags.FraudRedFlag, row.Flags.OtherFlags,
		row.Metrics, row.DeepDiveSummary, row.AddonSummary, row.AnalystNotes,
		row.LastAnalyzedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert universe row: %w", err)
	}
	return nil
}
