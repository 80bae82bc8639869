package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"triage-chatbot/internal/symptoms"
	"triage-chatbot/internal/training"
)

// Repository is the Postgres-backed training log.  Every row is a single
// INSERT, so concurrent appends from different sessions cannot lose updates.
type Repository struct {
	DB       *sql.DB
	Notifier *Notifier
	Logger   *zap.Logger
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
// notifier may be nil.
func NewRepository(db *sql.DB, notifier *Notifier, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{DB: db, Notifier: notifier, Logger: logger}
}

// Columns returns the training table header: the stored feature order
// followed by the prognosis column.
func (r *Repository) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name FROM feature_columns ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return append(cols, symptoms.PrognosisColumn), nil
}

// Append stores one training example and announces its ID.  A failed
// announcement is logged, the row itself is already committed.
func (r *Repository) Append(ctx context.Context, row training.Row) error {
	if len(row.Features) != symptoms.Len() {
		return fmt.Errorf("db: expected %d features, got %d", symptoms.Len(), len(row.Features))
	}
	features := make([]int64, len(row.Features))
	for i, v := range row.Features {
		features[i] = int64(v)
	}

	var id int64
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO training_rows (features, prognosis)
         VALUES ($1, $2)
         RETURNING id`,
		pq.Array(features), row.Label,
	).Scan(&id)
	if err != nil {
		return err
	}

	if r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, strconv.FormatInt(id, 10)); err != nil {
			r.Logger.Warn("failed to notify training row", zap.Int64("id", id), zap.Error(err))
		}
	}
	return nil
}

// Rows returns every stored example ordered by insertion.
func (r *Repository) Rows(ctx context.Context) ([]training.Row, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT features, prognosis FROM training_rows ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []training.Row
	for rows.Next() {
		var features pq.Int64Array
		var label string
		if err := rows.Scan(&features, &label); err != nil {
			return nil, err
		}
		row := training.Row{Features: make([]int, len(features)), Label: label}
		for i, v := range features {
			row.Features[i] = int(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
