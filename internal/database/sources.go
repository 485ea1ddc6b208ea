package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

// Notification-source tables (complaints, suggestions, it_requests) share
// one shape, so the queries take the table name from a fixed whitelist.
var sourceTables = map[string]bool{
	"complaints":  true,
	"suggestions": true,
	"it_requests": true,
}

func ValidSourceTable(table string) bool {
	return sourceTables[table]
}

func ListSourceRecords(db *sql.DB, table, status string, limit, offset int) ([]models.SourceRecord, error) {
	if !sourceTables[table] {
		return nil, fmt.Errorf("unknown source table %q", table)
	}
	rows, err := db.Query(
		`SELECT id, title, body, status, COALESCE(created_by::text, ''), created_at, updated_at
		 FROM `+table+`
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.SourceRecord
	for rows.Next() {
		var r models.SourceRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if records == nil {
		records = []models.SourceRecord{}
	}
	return records, nil
}

func CreateSourceRecord(db *sql.DB, table, title, body, createdBy string) (*models.SourceRecord, error) {
	if !sourceTables[table] {
		return nil, fmt.Errorf("unknown source table %q", table)
	}
	var r models.SourceRecord
	err := db.QueryRow(
		`INSERT INTO `+table+` (title, body, created_by) VALUES ($1, $2, $3)
		 RETURNING id, title, body, status, COALESCE(created_by::text, ''), created_at, updated_at`,
		title, body, createdBy,
	).Scan(&r.ID, &r.Title, &r.Body, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", table, err)
	}
	return &r, nil
}

func SetSourceStatus(db *sql.DB, table, id, status string) (*models.SourceRecord, error) {
	if !sourceTables[table] {
		return nil, fmt.Errorf("unknown source table %q", table)
	}
	var r models.SourceRecord
	err := db.QueryRow(
		`UPDATE `+table+` SET status = $2, updated_at = NOW() WHERE id = $1
		 RETURNING id, title, body, status, COALESCE(created_by::text, ''), created_at, updated_at`,
		id, status,
	).Scan(&r.ID, &r.Title, &r.Body, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update %s status: %w", table, err)
	}
	return &r, nil
}
