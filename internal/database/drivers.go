package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

const driverCols = `id, full_name, license_number, license_expiry, phone, vehicle, status, created_at, updated_at`

func scanDriver(row interface{ Scan(...interface{}) error }, d *models.Driver) error {
	return row.Scan(&d.ID, &d.FullName, &d.LicenseNumber, &d.LicenseExpiry,
		&d.Phone, &d.Vehicle, &d.Status, &d.CreatedAt, &d.UpdatedAt)
}

func ListDrivers(db *sql.DB, status, query string, limit, offset int) ([]models.Driver, int, error) {
	var total int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM drivers
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR license_number ILIKE '%' || $2 || '%')`,
		status, query,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count drivers: %w", err)
	}

	rows, err := db.Query(
		`SELECT `+driverCols+` FROM drivers
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR license_number ILIKE '%' || $2 || '%')
		 ORDER BY full_name LIMIT $3 OFFSET $4`,
		status, query, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := scanDriver(rows, &d); err != nil {
			return nil, 0, err
		}
		drivers = append(drivers, d)
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	return drivers, total, nil
}

func GetDriver(db *sql.DB, id string) (*models.Driver, error) {
	var d models.Driver
	err := scanDriver(db.QueryRow(`SELECT `+driverCols+` FROM drivers WHERE id = $1`, id), &d)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return &d, nil
}

func CreateDriver(db *sql.DB, d *models.Driver) (*models.Driver, error) {
	var out models.Driver
	err := scanDriver(db.QueryRow(
		`INSERT INTO drivers (full_name, license_number, license_expiry, phone, vehicle, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+driverCols,
		d.FullName, d.LicenseNumber, d.LicenseExpiry, d.Phone, d.Vehicle, d.Status,
	), &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	return &out, nil
}

func UpdateDriver(db *sql.DB, id string, d *models.Driver) (*models.Driver, error) {
	var out models.Driver
	err := scanDriver(db.QueryRow(
		`UPDATE drivers SET full_name = $2, license_number = $3, license_expiry = $4,
		        phone = $5, vehicle = $6, status = $7, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+driverCols,
		id, d.FullName, d.LicenseNumber, d.LicenseExpiry, d.Phone, d.Vehicle, d.Status,
	), &out)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update driver: %w", err)
	}
	return &out, nil
}

func DeleteDriver(db *sql.DB, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM drivers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete driver: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
