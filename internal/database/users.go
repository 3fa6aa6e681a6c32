package database

import (
	"database/sql"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/google/uuid"
)

// CreateUser creates a new user with an already-hashed password
func CreateUser(email, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  passwordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO users (id, email, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if dbType == "postgres" {
		query = `INSERT INTO users (id, email, password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	}

	if _, err := dbConn.Exec(query, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT id, email, password, created_at, updated_at FROM users WHERE email = ?`
	if dbType == "postgres" {
		query = `SELECT id, email, password, created_at, updated_at FROM users WHERE email = $1`
	}

	user := &models.User{}
	err := dbConn.QueryRow(query, email).Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by id
func GetUserByID(id string) (*models.User, error) {
	query := `SELECT id, email, password, created_at, updated_at FROM users WHERE id = ?`
	if dbType == "postgres" {
		query = `SELECT id, email, password, created_at, updated_at FROM users WHERE id = $1`
	}

	user := &models.User{}
	err := dbConn.QueryRow(query, id).Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
