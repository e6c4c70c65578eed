package login

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"materna-backend/conn"
)

var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
)

type User struct {
	UserID       string
	Username     string
	PasswordHash string
	PatientID    string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// shortID mirrors the 8 character ids handed to existing mobile clients.
func shortID() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] }

// CreateUser stores a new account with a freshly allocated patient id.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	u := User{UserID: shortID(), Username: username, PasswordHash: passwordHash, PatientID: shortID()}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password, patient_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.UserID, u.Username, u.PasswordHash, u.PatientID, time.Now().UTC())
	if conn.IsDuplicateKey(err) {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, password, patient_id FROM users WHERE username = ?`, username).
		Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.PatientID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
