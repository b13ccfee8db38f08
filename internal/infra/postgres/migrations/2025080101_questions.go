// Package migrations provisions the question table. Creating and seeding
// are one step: a freshly migrated database serves the same bank as the
// embedded fallback.
package migrations

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"retrotunes-service/internal/catalog"
)

//go:embed 0001_create_questions.sql
var createQuestionsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(createAndSeedQuestions, dropQuestions)
}

func createAndSeedQuestions(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, createQuestionsSQL); err != nil {
		return err
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	// Rows are keyed by question text, so re-seeding a partially populated
	// table fills gaps without clobbering operator edits.
	for _, r := range cat.All() {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (text, decade, category, data) VALUES (?, ?, ?, ?) ON CONFLICT (text) DO NOTHING`,
			r.Text, string(r.Decade), string(r.Category), string(data),
		); err != nil {
			return err
		}
	}
	return nil
}

func dropQuestions(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS questions`)
	return err
}
