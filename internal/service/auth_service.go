package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notebook-server/internal/domain"
	"notebook-server/internal/repository"
	"notebook-server/pkg/hash"
	"notebook-server/pkg/jwt"

	"go.uber.org/zap"
)

type AuthService struct {
	store             repository.Transactor
	clock             domain.Clock
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	logger            *zap.SugaredLogger
}

func NewAuthService(store repository.Transactor, clock domain.Clock, jwtSecret string, jwtExp, refreshExp time.Duration, logger *zap.SugaredLogger) *AuthService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AuthService{
		store:             store,
		clock:             clock,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		logger:            logger,
	}
}

// Login checks the credentials, records the login as activity and issues a
// token pair.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	var user *domain.User
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().FindByUsername(req.Username)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrBadCredentials
			}
			return err
		}
		if err := hash.Compare(user.PasswordHash, req.Password); err != nil {
			return domain.ErrBadCredentials
		}
		user.LastSeen = s.clock.Now()
		return tx.Users().Update(user)
	})
	if err != nil {
		if errors.Is(err, domain.ErrBadCredentials) {
			s.logger.Infow("login rejected", "username", req.Username)
		}
		return nil, unexpected("Unable to log in", err)
	}

	return s.issue(user)
}

// Refresh exchanges a valid refresh token for a new token pair. The admin
// claim is read again from the account.
func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.LoginResponse, error) {
	claims, err := jwt.ValidateTokenType(req.RefreshToken, s.jwtSecret, jwt.TypeRefresh)
	if err != nil {
		return nil, domain.ErrBadCredentials
	}

	var user *domain.User
	err = s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().FindByUsername(claims.Username())
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrBadCredentials
		}
		return err
	})
	if err != nil {
		return nil, unexpected("Unable to refresh the token", err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*domain.LoginResponse, error) {
	subject := jwt.Subject{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}

	access, err := jwt.Issue(subject, jwt.TypeAccess, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := jwt.Issue(subject, jwt.TypeRefresh, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:    access.Value,
		AccessExpires:  domain.Timestamp(access.ExpiresAt),
		RefreshToken:   refresh.Value,
		RefreshExpires: domain.Timestamp(refresh.ExpiresAt),
	}, nil
}
