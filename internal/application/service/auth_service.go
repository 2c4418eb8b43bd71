package service

import (
	"context"
	"errors"
	"strings"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// Session is returned by a successful login
type Session struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

// AuthService exchanges credentials for tokens and tokens for identities
type AuthService interface {
	Login(ctx context.Context, username, password string) (*Session, error)

	// Authenticate resolves a token to the current identity of its user.
	// The user is reloaded so role and section changes apply immediately.
	Authenticate(ctx context.Context, token string) (entity.Identity, error)
}

type authServiceImpl struct {
	userRepo port.UserRepository
	hasher   port.PasswordHasher
	tokens   port.TokenIssuer
	logger   Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo port.UserRepository, hasher port.PasswordHasher, tokens port.TokenIssuer, logger Logger) AuthService {
	return &authServiceImpl{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}
}

func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info("Login failed", "username", username)
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	token, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return &Session{Token: token, User: user}, nil
}

func (s *authServiceImpl) Authenticate(ctx context.Context, token string) (entity.Identity, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return entity.Identity{}, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return entity.Identity{}, apperr.Unauthenticated("account no longer exists")
		}
		return entity.Identity{}, err
	}
	return user.Identity(), nil
}
