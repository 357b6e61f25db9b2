package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/secissues/secissues-go/internal/crypto"
	"github.com/secissues/secissues-go/internal/metrics"
	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/repository"
)

// MinPasswordLength is enforced by handlers before calling ChangePassword.
const MinPasswordLength = 6

// maxFieldLength is the width of the users.email and users.name columns.
const maxFieldLength = 255

// UserStore is the credential store the AuthService depends on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdatePasswordHash(ctx context.Context, email, hash string) error
}

// AuthService handles registration, login and token resolution.
type AuthService struct {
	users  UserStore
	tokens *crypto.TokenService
	logger *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, tokens *crypto.TokenService, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register creates a new user account and returns an auth token.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if req.Name == "" {
		return model.AuthResponse{}, ErrNameRequired
	}
	if req.Email == "" {
		return model.AuthResponse{}, ErrEmailRequired
	}
	if req.Password == "" {
		return model.AuthResponse{}, ErrPasswordRequired
	}
	if utf8.RuneCountInString(req.Name) > maxFieldLength || utf8.RuneCountInString(req.Email) > maxFieldLength {
		return model.AuthResponse{}, ErrFieldTooLong
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		metrics.AuthEvents.WithLabelValues("register", "duplicate").Inc()
		return model.AuthResponse{}, ErrAlreadyRegistered
	case !errors.Is(err, repository.ErrUserNotFound):
		return model.AuthResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			metrics.AuthEvents.WithLabelValues("register", "duplicate").Inc()
			return model.AuthResponse{}, ErrAlreadyRegistered
		}
		return model.AuthResponse{}, fmt.Errorf("create user: %w", err)
	}

	metrics.AuthEvents.WithLabelValues("register", "ok").Inc()
	return s.issue(user)
}

// Login authenticates a user and returns an auth token. Hashes produced with
// outdated parameters are upgraded on the way through.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		return model.AuthResponse{}, ErrEmailRequired
	}
	if req.Password == "" {
		return model.AuthResponse{}, ErrPasswordRequired
	}

	user, err := s.checkPassword(ctx, req.Email, req.Password)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "failed").Inc()
		return model.AuthResponse{}, err
	}

	if crypto.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.Email, req.Password)
	}

	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()
	return s.issue(user)
}

// Resolve verifies a bearer token and loads the current account it names.
func (s *AuthService) Resolve(ctx context.Context, token string) (model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, ErrInvalidToken
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}

	return *user, nil
}

// ChangePassword replaces the stored hash once oldPassword is verified. A
// failed verification leaves the stored hash untouched. Length rules are the
// caller's job; see MinPasswordLength.
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	email = normalizeEmail(email)

	user, err := s.checkPassword(ctx, email, oldPassword)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("change_password", "failed").Inc()
		return err
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, user.Email, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNoSuchUser
		}
		return fmt.Errorf("update password: %w", err)
	}

	metrics.AuthEvents.WithLabelValues("change_password", "ok").Inc()
	s.logger.Info("password changed", slog.String("email", user.Email))
	return nil
}

func (s *AuthService) checkPassword(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := crypto.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) rehash(ctx context.Context, email, password string) {
	hash, err := crypto.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, email, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", slog.String("email", email), slog.Any("error", err))
		return
	}
	s.logger.Info("password hash upgraded", slog.String("email", email))
}

func (s *AuthService) issue(user *model.User) (model.AuthResponse, error) {
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
