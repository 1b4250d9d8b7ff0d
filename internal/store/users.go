package store

import (
	"context"
	"database/sql"
	"errors"

	"pos-service/internal/models"
)

// GetUserByID retrieves the actor read model for a user
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, username, role, is_superuser FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAdminUsers lists users that receive admin-wide notification fan-out
func (s *Store) GetAdminUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT id, username, role, is_superuser FROM users WHERE role = 'admin' OR is_superuser")
	return users, err
}
