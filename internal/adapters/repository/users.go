package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fetalhealth/pkg/logger"
)

const defaultBcryptCost = bcrypt.DefaultCost

// Authenticate implements UserStore.Authenticate.
func (s *QLStore) Authenticate(ctx context.Context, user, password string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var (
		hash   string
		active sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, sqlSelectUser, user).Scan(&hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !active.Bool {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// CreateUser implements UserStore.CreateUser.
func (s *QLStore) CreateUser(ctx context.Context, user, password string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	user = strings.TrimSpace(user)
	if user == "" || password == "" {
		return fmt.Errorf("%w: user name and password are required", ErrInvalidUser)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	err = s.inTx(ctx, "create user", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlDeleteUser, user); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, sqlInsertUser, user, string(hash))
		return err
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	s.logger.Info(ctx, "user saved", logger.String("user", user))
	return nil
}
