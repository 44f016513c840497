package journal

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PostgresJournal implements Journal on PostgreSQL.
type PostgresJournal struct {
	db *sqlx.DB
}

var _ Journal = (*PostgresJournal)(nil)

// NewPostgresJournal connects, applies pool settings and runs the schema
// migrations from migrationsDir.
func NewPostgresJournal(ctx context.Context, cfg Config, migrationsDir string) (*PostgresJournal, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db.DB, migrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return &PostgresJournal{db: db}, nil
}

func (j *PostgresJournal) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO purchase_journal (
			purchase_id, order_id, chain_id, token_address, token_amount,
			tx_hash, outcome, message, reconciled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (purchase_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			message = EXCLUDED.message,
			tx_hash = EXCLUDED.tx_hash
	`
	_, err := j.db.ExecContext(ctx, query,
		entry.PurchaseID, entry.OrderID, entry.ChainID, entry.TokenAddress,
		entry.TokenAmount, entry.TxHash, string(entry.Outcome), entry.Message,
		entry.Reconciled,
	)
	if err != nil {
		return fmt.Errorf("failed to record purchase outcome: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Unreconciled(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT purchase_id, order_id, chain_id, token_address, token_amount,
		       tx_hash, outcome, message, reconciled, created_at
		FROM purchase_journal
		WHERE outcome = 'inclusion_report_failed' AND reconciled = FALSE
		ORDER BY created_at ASC
	`
	var entries []Entry
	if err := j.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list unreconciled purchases: %w", err)
	}
	return entries, nil
}

func (j *PostgresJournal) MarkReconciled(ctx context.Context, purchaseID string) error {
	query := `UPDATE purchase_journal SET reconciled = TRUE WHERE purchase_id = $1`
	if _, err := j.db.ExecContext(ctx, query, purchaseID); err != nil {
		return fmt.Errorf("failed to mark purchase reconciled: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Close() error {
	return j.db.Close()
}
