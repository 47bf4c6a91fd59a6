package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notebook-server/internal/cache"
	"notebook-server/internal/domain"
	"notebook-server/internal/repository"
	"notebook-server/pkg/hash"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SystemPrincipal acts for operators, e.g. the command line tool. It is an
// admin that owns no account.
var SystemPrincipal = domain.Principal{Username: "system", IsAdmin: true}

type UserService struct {
	store     repository.Transactor
	cache     cache.NoteCache
	clock     domain.Clock
	validator *validator.Validate
	hashCost  int
	logger    *zap.SugaredLogger
}

func NewUserService(store repository.Transactor, noteCache cache.NoteCache, clock domain.Clock, hashCost int, logger *zap.SugaredLogger) *UserService {
	if noteCache == nil {
		noteCache = cache.NewNopNoteCache()
	}
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{
		store:     store,
		cache:     noteCache,
		clock:     clock,
		validator: validator.New(),
		hashCost:  hashCost,
		logger:    logger,
	}
}

func (s *UserService) validEmail(email string) bool {
	return s.validator.Var(email, "required,email") == nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := hash.HashWithCost(password, s.hashCost)
	if errors.Is(err, hash.ErrEmptyPassword) {
		return "", domain.ErrEmptyPassword
	}
	return hashed, err
}

func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	switch {
	case username == "":
		return nil, domain.ErrEmptyUsername
	case email == "":
		return nil, domain.ErrEmptyEmail
	case req.Password == "":
		return nil, domain.ErrEmptyPassword
	case !s.validEmail(email):
		return nil, domain.EmailInvalid(email)
	}

	user := &domain.User{Username: username, Email: email}
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		taken, err := tx.Users().UsernameExists(username)
		if err != nil {
			return err
		}
		if taken {
			return domain.UsernameTaken(username)
		}
		taken, err = tx.Users().EmailExists(email)
		if err != nil {
			return err
		}
		if taken {
			return domain.EmailTaken(email)
		}

		user.PasswordHash, err = s.hashPassword(req.Password)
		if err != nil {
			return err
		}
		return tx.Users().Create(user)
	})
	if err != nil {
		return nil, unexpected("Unable to create the user", err)
	}

	s.logger.Infow("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Modify applies the given changes to the account named username. Callers
// other than admins may only modify their own account.
func (s *UserService) Modify(ctx context.Context, actor domain.Principal, username string, changes domain.UserChanges) (*domain.User, error) {
	if !actor.IsAdmin && actor.Username != username {
		return nil, domain.ErrForbidden
	}

	var user *domain.User
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().FindByUsername(username)
		if err != nil {
			return err
		}

		if changes.Username != nil {
			newName := strings.TrimSpace(*changes.Username)
			if newName == "" {
				return domain.UsernameInvalid(*changes.Username)
			}
			if newName != user.Username {
				taken, err := tx.Users().UsernameExists(newName)
				if err != nil {
					return err
				}
				if taken {
					return domain.UsernameInvalid(newName)
				}
				user.Username = newName
			}
		}

		if changes.Email != nil {
			newEmail := strings.TrimSpace(*changes.Email)
			if !s.validEmail(newEmail) {
				return domain.EmailInvalid(newEmail)
			}
			if newEmail != user.Email {
				taken, err := tx.Users().EmailExists(newEmail)
				if err != nil {
					return err
				}
				if taken {
					return domain.EmailInvalid(newEmail)
				}
				user.Email = newEmail
			}
		}

		if changes.Password != nil {
			user.PasswordHash, err = s.hashPassword(*changes.Password)
			if err != nil {
				return err
			}
		}

		return tx.Users().Update(user)
	})
	if err != nil {
		return nil, unexpected("Unable to modify the user", err)
	}
	return user, nil
}

// SetAdmin grants or revokes admin rights. Nobody can change their own.
func (s *UserService) SetAdmin(ctx context.Context, actor domain.Principal, username string, value bool) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}

	var user *domain.User
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().FindByUsername(username)
		if err != nil {
			return err
		}
		if actor.UserID != 0 && actor.UserID == user.ID {
			return domain.ErrSelfAdminChange
		}
		user.IsAdmin = value
		return tx.Users().Update(user)
	})
	if err != nil {
		return nil, unexpected("Unable to change the admin status", err)
	}

	s.logger.Infow("admin status changed", "username", username, "is_admin", value, "by", actor.Username)
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, actor domain.Principal, id int64) (*domain.User, error) {
	return s.get(ctx, actor, func(users repository.UserRepository) (*domain.User, error) {
		return users.FindByID(id)
	})
}

func (s *UserService) GetByUsername(ctx context.Context, actor domain.Principal, username string) (*domain.User, error) {
	return s.get(ctx, actor, func(users repository.UserRepository) (*domain.User, error) {
		return users.FindByUsername(username)
	})
}

func (s *UserService) get(ctx context.Context, actor domain.Principal, find func(repository.UserRepository) (*domain.User, error)) (*domain.User, error) {
	var user *domain.User
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		user, err = find(tx.Users())
		return err
	})
	if err != nil {
		return nil, unexpected("Unable to get the user", err)
	}
	if !actor.CanAccess(user.ID) {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

// Delete removes an account and every note it owns. Nobody can delete their
// own account.
func (s *UserService) Delete(ctx context.Context, actor domain.Principal, username string) (int64, error) {
	if !actor.IsAdmin {
		return 0, domain.ErrForbidden
	}

	var (
		id      int64
		noteIDs []int64
	)
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().FindByUsername(username)
		if err != nil {
			return err
		}
		if actor.UserID != 0 && actor.UserID == user.ID {
			return domain.ErrSelfDelete
		}
		id = user.ID
		noteIDs, err = tx.Users().Delete(user)
		return err
	})
	if err != nil {
		return 0, unexpected("Unable to delete the user", err)
	}

	for _, noteID := range noteIDs {
		s.cache.Invalidate(ctx, noteID)
	}

	s.logger.Infow("user deleted", "user_id", id, "username", username, "by", actor.Username)
	return id, nil
}

func (s *UserService) List(ctx context.Context, actor domain.Principal, query domain.ListQuery) (*domain.Page[*domain.UserResponse], error) {
	if !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}

	var page *domain.Page[*domain.UserResponse]
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		users, err := tx.Users().List(query)
		if err != nil {
			return err
		}
		page = domain.MapPage(users, (*domain.User).ToResponse)
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to list the users", err)
	}
	return page, nil
}

// Touch records that username was just active.
func (s *UserService) Touch(ctx context.Context, username string) error {
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().FindByUsername(username)
		if err != nil {
			return err
		}
		user.LastSeen = s.clock.Now()
		return tx.Users().Update(user)
	})
	if err != nil {
		return fmt.Errorf("failed to update last seen of %s: %w", username, err)
	}
	return nil
}
