package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

const userColumns = `id, email, password_hash, auth_provider, first_name, last_name, school_name,
	academic_level, city, subject, is_profile_complete, last_login, created_at, updated_at`

func (r *repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, auth_provider, first_name, last_name,
			  school_name, academic_level, city, subject, is_profile_complete, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.AuthProvider,
		user.FirstName, user.LastName, user.SchoolName, user.AcademicLevel, user.City, user.Subject,
		user.IsProfileComplete, now, now)
	if isDuplicate(err) {
		return fmt.Errorf("%s: %w", user.Email, errors.ErrUserExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *repository) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *repository) UpdateProfile(ctx context.Context, userID string, p model.Profile) (*model.User, error) {
	query := `UPDATE users SET first_name = ?, last_name = ?, school_name = ?, academic_level = ?,
			  city = ?, subject = ?, is_profile_complete = TRUE, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, p.FirstName, p.LastName, p.SchoolName, p.AcademicLevel,
		p.City, p.Subject, time.Now().UTC(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return r.GetUserByID(ctx, userID)
}

func (r *repository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, at, userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user      model.User
		hash      sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Email, &hash, &user.AuthProvider, &user.FirstName,
		&user.LastName, &user.SchoolName, &user.AcademicLevel, &user.City, &user.Subject,
		&user.IsProfileComplete, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if hash.Valid {
		user.PasswordHash = &hash.String
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}
