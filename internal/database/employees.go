package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

const employeeCols = `id, full_name, email, phone, department, position, salary, hire_date, status, created_at, updated_at`

func scanEmployee(row interface{ Scan(...interface{}) error }, e *models.Employee) error {
	return row.Scan(&e.ID, &e.FullName, &e.Email, &e.Phone, &e.Department, &e.Position,
		&e.Salary, &e.HireDate, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

func ListEmployees(db *sql.DB, status, query string, limit, offset int) ([]models.Employee, int, error) {
	var total int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM employees
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR department ILIKE '%' || $2 || '%')`,
		status, query,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", err)
	}

	rows, err := db.Query(
		`SELECT `+employeeCols+` FROM employees
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR department ILIKE '%' || $2 || '%')
		 ORDER BY full_name LIMIT $3 OFFSET $4`,
		status, query, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := scanEmployee(rows, &e); err != nil {
			return nil, 0, err
		}
		employees = append(employees, e)
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	return employees, total, nil
}

func GetEmployee(db *sql.DB, id string) (*models.Employee, error) {
	var e models.Employee
	err := scanEmployee(db.QueryRow(`SELECT `+employeeCols+` FROM employees WHERE id = $1`, id), &e)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

func CreateEmployee(db *sql.DB, e *models.Employee) (*models.Employee, error) {
	var out models.Employee
	err := scanEmployee(db.QueryRow(
		`INSERT INTO employees (full_name, email, phone, department, position, salary, hire_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+employeeCols,
		e.FullName, e.Email, e.Phone, e.Department, e.Position, e.Salary, e.HireDate, e.Status,
	), &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}
	return &out, nil
}

func UpdateEmployee(db *sql.DB, id string, e *models.Employee) (*models.Employee, error) {
	var out models.Employee
	err := scanEmployee(db.QueryRow(
		`UPDATE employees SET full_name = $2, email = $3, phone = $4, department = $5,
		        position = $6, salary = $7, hire_date = $8, status = $9, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+employeeCols,
		id, e.FullName, e.Email, e.Phone, e.Department, e.Position, e.Salary, e.HireDate, e.Status,
	), &out)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}
	return &out, nil
}

func DeleteEmployee(db *sql.DB, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete employee: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
