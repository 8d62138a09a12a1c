package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// CompletionRecord is one analytics row written when a session completes.
type CompletionRecord struct {
	SessionID   string
	ExternalID  string
	Outcome     bool
	Amount      decimal.Decimal
	Currency    string
	CreatedAt   time.Time
	CompletedAt time.Time
}

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS skill_check_analytics (
			session_id VARCHAR(255) PRIMARY KEY,
			external_id VARCHAR(255) NOT NULL,
			outcome BOOLEAN NOT NULL,
			amount DECIMAL(15,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			checkout_seconds DOUBLE PRECISION NOT NULL,
			session_created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_skill_check_analytics_completed_at ON skill_check_analytics(completed_at)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// RecordCompletion is idempotent on session_id.
func (r *AnalyticsRepository) RecordCompletion(ctx context.Context, rec CompletionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skill_check_analytics
			(session_id, external_id, outcome, amount, currency, checkout_seconds, session_created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`, rec.SessionID, rec.ExternalID, rec.Outcome, rec.Amount.StringFixed(2), rec.Currency,
		rec.CompletedAt.Sub(rec.CreatedAt).Seconds(), rec.CreatedAt, rec.CompletedAt)
	return err
}
