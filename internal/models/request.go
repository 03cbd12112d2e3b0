package models

import "time"

// RequestRecord is one row of the request audit log. It holds request
// metadata only; parcel geometry is never written to storage.
type RequestRecord struct {
	ID           int64     `db:"id" json:"id"`
	Operation    string    `db:"operation" json:"operation"`
	Input        string    `db:"input" json:"input"`
	ParcelCount  int       `db:"parcel_count" json:"parcel_count"`
	FailedCount  int       `db:"failed_count" json:"failed_count"`
	FailedTokens string    `db:"failed_tokens" json:"failed_tokens"`
	Status       string    `db:"status" json:"status"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
