package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

const expenseCols = `id, description, category, amount, incurred_on, submitted_by, status, created_at, updated_at`

func scanExpense(row interface{ Scan(...interface{}) error }, e *models.Expense) error {
	return row.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.IncurredOn,
		&e.SubmittedBy, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

func ListExpenses(db *sql.DB, status, submittedBy string, limit, offset int) ([]models.Expense, int, error) {
	var total int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM expenses
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR submitted_by::text = $2)`,
		status, submittedBy,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	rows, err := db.Query(
		`SELECT `+expenseCols+` FROM expenses
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR submitted_by::text = $2)
		 ORDER BY incurred_on DESC LIMIT $3 OFFSET $4`,
		status, submittedBy, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, total, nil
}

func GetExpense(db *sql.DB, id string) (*models.Expense, error) {
	var e models.Expense
	err := scanExpense(db.QueryRow(`SELECT `+expenseCols+` FROM expenses WHERE id = $1`, id), &e)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

func CreateExpense(db *sql.DB, e *models.Expense) (*models.Expense, error) {
	var out models.Expense
	err := scanExpense(db.QueryRow(
		`INSERT INTO expenses (description, category, amount, incurred_on, submitted_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+expenseCols,
		e.Description, e.Category, e.Amount, e.IncurredOn, e.SubmittedBy,
	), &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return &out, nil
}

func UpdateExpense(db *sql.DB, id string, e *models.Expense) (*models.Expense, error) {
	var out models.Expense
	err := scanExpense(db.QueryRow(
		`UPDATE expenses SET description = $2, category = $3, amount = $4, incurred_on = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+expenseCols,
		id, e.Description, e.Category, e.Amount, e.IncurredOn,
	), &out)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	return &out, nil
}

func SetExpenseStatus(db *sql.DB, id, status string) (*models.Expense, error) {
	var out models.Expense
	err := scanExpense(db.QueryRow(
		`UPDATE expenses SET status = $2, updated_at = NOW() WHERE id = $1
		 RETURNING `+expenseCols,
		id, status,
	), &out)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to set expense status: %w", err)
	}
	return &out, nil
}

func DeleteExpense(db *sql.DB, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
