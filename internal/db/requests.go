package db

import (
	"context"
	"fmt"

	"parcel-agent/internal/models"
)

// RecordRequest inserts one audit row for a completed request.
func (db *DB) RecordRequest(ctx context.Context, rec models.RequestRecord) error {
	query := `
		INSERT INTO requests (operation, input, parcel_count, failed_count, failed_tokens, status, duration_ms)
		VALUES (:operation, :input, :parcel_count, :failed_count, :failed_tokens, :status, :duration_ms)`

	if _, err := db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert request record: %w", err)
	}
	return nil
}

// ListRequests returns the most recent audit rows, newest first.
func (db *DB) ListRequests(ctx context.Context, limit int) ([]models.RequestRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []models.RequestRecord
	query := `
		SELECT id, operation, input, parcel_count, failed_count, failed_tokens, status, duration_ms, created_at
		FROM requests
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	if err := db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return records, nil
}

// OperationCounts returns request totals per operation, for the stats
// endpoint.
func (db *DB) OperationCounts(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Operation string `db:"operation"`
		Count     int    `db:"count"`
	}{}

	query := `SELECT operation, COUNT(*) AS count FROM requests GROUP BY operation`
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Operation] = row.Count
	}
	return counts, nil
}
