package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

func ListAssets(db *sql.DB, status, query string, limit, offset int) ([]models.Asset, int, error) {
	var total int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM assets
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR serial_number ILIKE '%' || $2 || '%')`,
		status, query,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count assets: %w", err)
	}

	rows, err := db.Query(`
		SELECT a.id, a.name, a.category, a.serial_number, a.assigned_to::text,
		       COALESCE(e.full_name, ''), a.status, a.purchase_date, a.purchase_cost,
		       a.created_at, a.updated_at
		FROM assets a
		LEFT JOIN employees e ON a.assigned_to = e.id
		WHERE ($1 = '' OR a.status = $1) AND ($2 = '' OR a.name ILIKE '%' || $2 || '%' OR a.serial_number ILIKE '%' || $2 || '%')
		ORDER BY a.name LIMIT $3 OFFSET $4
	`, status, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.SerialNumber, &a.AssignedTo,
			&a.AssigneeName, &a.Status, &a.PurchaseDate, &a.PurchaseCost, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		assets = append(assets, a)
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	return assets, total, nil
}

func GetAsset(db *sql.DB, id string) (*models.Asset, error) {
	var a models.Asset
	err := db.QueryRow(`
		SELECT a.id, a.name, a.category, a.serial_number, a.assigned_to::text,
		       COALESCE(e.full_name, ''), a.status, a.purchase_date, a.purchase_cost,
		       a.created_at, a.updated_at
		FROM assets a
		LEFT JOIN employees e ON a.assigned_to = e.id
		WHERE a.id = $1
	`, id).Scan(&a.ID, &a.Name, &a.Category, &a.SerialNumber, &a.AssignedTo,
		&a.AssigneeName, &a.Status, &a.PurchaseDate, &a.PurchaseCost, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

func CreateAsset(db *sql.DB, a *models.Asset) (*models.Asset, error) {
	var id string
	err := db.QueryRow(
		`INSERT INTO assets (name, category, serial_number, assigned_to, status, purchase_date, purchase_cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.Name, a.Category, a.SerialNumber, a.AssignedTo, a.Status, a.PurchaseDate, a.PurchaseCost,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	return GetAsset(db, id)
}

func UpdateAsset(db *sql.DB, id string, a *models.Asset) (*models.Asset, error) {
	res, err := db.Exec(
		`UPDATE assets SET name = $2, category = $3, serial_number = $4, assigned_to = $5,
		        status = $6, purchase_date = $7, purchase_cost = $8, updated_at = NOW()
		 WHERE id = $1`,
		id, a.Name, a.Category, a.SerialNumber, a.AssignedTo, a.Status, a.PurchaseDate, a.PurchaseCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return GetAsset(db, id)
}

func DeleteAsset(db *sql.DB, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete asset: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
