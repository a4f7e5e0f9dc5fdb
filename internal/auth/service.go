package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *repository.User) error
	GetUserByEmail(ctx context.Context, email string) (*repository.User, error)
}

type ProfileReader interface {
	Get(ctx context.Context, userID string) (*repository.User, error)
}

type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Role         string
	Phone        *string
	Address      *string
	Organization *string
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *repository.User
}

type Service struct {
	users     UserStore
	profiles  ProfileReader
	tokens    *TokenService
	logger    *zap.Logger
	cost      int
	dummyHash []byte
	now       func() time.Time
}

func NewService(users UserStore, profiles ProfileReader, tokens *TokenService, logger *zap.Logger, cost int) (*Service, error) {
	dummy, err := hashPassword("not-a-real-password", cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &Service{
		users:     users,
		profiles:  profiles,
		tokens:    tokens,
		logger:    logger,
		cost:      cost,
		dummyHash: []byte(dummy),
		now:       time.Now,
	}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(in.Password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role.String(),
		Phone:        in.Phone,
		Address:      in.Address,
		Organization: in.Organization,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersRegisteredTotal.WithLabelValues(user.Role).Inc()
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return s.session(user)
}

// Authenticate answers ErrInvalidCredentials for both an unknown email and a wrong
// password, and spends a bcrypt comparison in either case.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	ok, err := checkPassword(hash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if user == nil || !ok {
		metrics.LoginFailuresTotal.Inc()
		return nil, domain.ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *Service) Me(ctx context.Context, userID string) (*repository.User, error) {
	user, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// a valid signature for a user we do not know
			return nil, fmt.Errorf("%w: unknown subject", domain.ErrTokenInvalid)
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) Verify(token string) (domain.Identity, error) {
	return s.tokens.Verify(token)
}

func (s *Service) session(user *repository.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email", "is not a valid address")
	}
	return email, nil
}
