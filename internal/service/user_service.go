package service

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/user"
	"github.com/cassiomorais/realestate/internal/middleware"
	"github.com/rs/zerolog"
)

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// UserService handles registration, login and account administration.
type UserService struct {
	userRepo  user.Repository
	jwtSecret string
	jwtExpiry time.Duration
	cache     StatsCache
	logger    zerolog.Logger
}

func NewUserService(userRepo user.Repository, jwtSecret string, jwtExpiry time.Duration, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// WithStatsCache invalidates the cached statistics report on registration.
func (s *UserService) WithStatsCache(cache StatsCache) *UserService {
	s.cache = cache
	return s
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	u, err := user.NewUser(username, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	invalidateStats(ctx, s.cache, s.logger)

	s.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("User registered")
	return u, nil
}

// Login checks the credentials and issues a token. Unknown emails and wrong
// passwords are reported the same way.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.Active {
		return nil, domainErrors.ErrUserInactive
	}
	if !u.CheckPassword(password) {
		return nil, domainErrors.ErrInvalidCredentials
	}

	token, err := middleware.IssueToken(s.jwtSecret, u.ID, u.IsAdmin, s.jwtExpiry)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: time.Now().Add(s.jwtExpiry), User: u}, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	if callerID, ok := middleware.GetUserID(ctx); ok && callerID == id && !active {
		return domainErrors.NewValidationError("active", "cannot deactivate your own account")
	}
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Bool("active", active).Msg("User activation changed")
	return nil
}

// SetAdmin grants or revokes admin rights. Admins cannot demote themselves.
func (s *UserService) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	if callerID, ok := middleware.GetUserID(ctx); ok && callerID == id && !isAdmin {
		return domainErrors.NewValidationError("is_admin", "cannot revoke your own admin rights")
	}
	if err := s.userRepo.SetAdmin(ctx, id, isAdmin); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Bool("is_admin", isAdmin).Msg("User admin flag changed")
	return nil
}
