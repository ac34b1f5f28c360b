package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/catalog_admin/internal/models"
	"github.com/Skotchmaster/catalog_admin/internal/repo"
	"github.com/Skotchmaster/catalog_admin/internal/transport"
	"github.com/Skotchmaster/catalog_admin/pkg/hash"
	"github.com/Skotchmaster/catalog_admin/pkg/logging"
)

type UserRepo interface {
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
}

type AuthService struct {
	Repo   UserRepo
	Tokens TokenIssuer
	Hasher PasswordHasher
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Signup(ctx context.Context, req transport.SignupRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}

	pwHash, err := s.Hasher.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		l.Error("signup_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: pwHash,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, ErrConflict
		}
		l.Error("signup_error", "reason", "cannot create user", "error", err)
		return nil, storeErr(err)
	}

	l.Info("signup_success", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest) (*transport.LoginResult, error) {
	email := normalizeEmail(req.Email)
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error("login_error", "reason", "cannot load user", "error", err)
		return nil, storeErr(err)
	}

	if !s.Hasher.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.Tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		l.Error("login_error", "reason", "cannot issue token", "error", err)
		return nil, err
	}

	return &transport.LoginResult{
		Token:     token,
		ExpiresAt: exp,
		User:      transport.NewUserResponse(user),
	}, nil
}
