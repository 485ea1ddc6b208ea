package database

import (
	"database/sql"
	"fmt"

	"github.com/opsdesk/opsdesk/internal/models"
)

func CreateUser(db *sql.DB, username, email, passwordHash, fullName string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(
		`INSERT INTO users (username, email, password, full_name) VALUES ($1, $2, $3, $4)
		 RETURNING id, username, email, full_name, role, avatar_url, created_at`,
		username, email, passwordHash, fullName,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func GetUserByUsername(db *sql.DB, username string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(
		`SELECT id, username, email, password, full_name, role, avatar_url, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func GetUserByID(db *sql.DB, id string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(
		`SELECT id, username, email, full_name, role, avatar_url, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func ListUsers(db *sql.DB, query string, limit int) ([]models.User, error) {
	rows, err := db.Query(
		`SELECT id, username, email, full_name, role, avatar_url, created_at FROM users
		 WHERE username ILIKE $1 OR full_name ILIKE $1
		 ORDER BY username LIMIT $2`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func UpdateUserProfile(db *sql.DB, id, fullName, avatarURL string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(
		`UPDATE users SET full_name = $2, avatar_url = $3 WHERE id = $1
		 RETURNING id, username, email, full_name, role, avatar_url, created_at`,
		id, fullName, avatarURL,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &u, nil
}

func UpdateUserRole(db *sql.DB, id, role string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(
		`UPDATE users SET role = $2 WHERE id = $1
		 RETURNING id, username, email, full_name, role, avatar_url, created_at`,
		id, role,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return &u, nil
}
