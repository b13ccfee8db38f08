// Package postgres loads the question bank from a Postgres table, letting
// operators curate questions without rebuilding the binary.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"retrotunes-service/internal/catalog"
)

// CatalogLoader reads question JSONB rows seeded by the migrations.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

// Load fetches every question row and builds a validated catalog.
func (l *CatalogLoader) Load(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions ORDER BY text`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var records []catalog.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var r catalog.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return catalog.New(records)
}
