package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "embed"

	"github.com/lib/pq"

	"triage-chatbot/internal/symptoms"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the database schema to the given database and seeds the
// feature column order from the symptom vocabulary.  Existing positions are
// left untouched so a drifted table is reported by the classifier at load
// time rather than silently rewritten.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}

	names := symptoms.Names()
	positions := make([]int64, len(names))
	for i := range names {
		positions[i] = int64(i)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO feature_columns (position, name)
         SELECT * FROM unnest($1::int[], $2::text[])
         ON CONFLICT (position) DO NOTHING`,
		pq.Array(positions), pq.Array(names),
	)
	if err != nil {
		return fmt.Errorf("db: seed feature columns: %w", err)
	}
	return nil
}
