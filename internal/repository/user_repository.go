package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"notebook-server/internal/domain"
)

// UserRepository writes users directly inside the unit of work's
// transaction.
type UserRepository interface {
	Create(user *domain.User) error
	FindByID(id int64) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Update(user *domain.User) error
	Delete(user *domain.User) ([]int64, error)
	List(query domain.ListQuery) (*domain.Page[*domain.User], error)
	UsernameExists(username string) (bool, error)
	EmailExists(email string) (bool, error)
}

type userRepository struct {
	uow *UnitOfWork
}

const userFields = "id, username, email, password_hash, is_admin, created_at, last_seen"

func (r *userRepository) Create(user *domain.User) error {
	now := r.uow.clock.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}

	res, err := r.uow.tx.ExecContext(r.uow.ctx,
		`INSERT INTO users (username, email, password_hash, is_admin, created_at, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.IsAdmin, user.CreatedAt, user.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

func (r *userRepository) FindByID(id int64) (*domain.User, error) {
	return r.findOne("id = ?", id)
}

func (r *userRepository) FindByUsername(username string) (*domain.User, error) {
	return r.findOne("username = ?", username)
}

func (r *userRepository) FindByEmail(email string) (*domain.User, error) {
	return r.findOne("email = ?", email)
}

func (r *userRepository) findOne(where string, arg any) (*domain.User, error) {
	row := r.uow.tx.QueryRowContext(r.uow.ctx, "SELECT "+userFields+" FROM users WHERE "+where, arg)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Update(user *domain.User) error {
	_, err := r.uow.tx.ExecContext(r.uow.ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ?, is_admin = ?, last_seen = ? WHERE id = ?`,
		user.Username, user.Email, user.PasswordHash, user.IsAdmin, user.LastSeen, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes the user and every note the user created. It returns the ids
// of the deleted notes.
func (r *userRepository) Delete(user *domain.User) ([]int64, error) {
	noteIDs, err := r.noteIDs(user.ID)
	if err != nil {
		return nil, err
	}
	if _, err := r.uow.tx.ExecContext(r.uow.ctx, "DELETE FROM notes WHERE created_by = ?", user.ID); err != nil {
		return nil, fmt.Errorf("failed to delete notes of user %d: %w", user.ID, err)
	}
	res, err := r.uow.tx.ExecContext(r.uow.ctx, "DELETE FROM users WHERE id = ?", user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrUserNotFound
	}
	r.uow.forgetOwner(user.ID)
	return noteIDs, nil
}

func (r *userRepository) noteIDs(userID int64) ([]int64, error) {
	rows, err := r.uow.tx.QueryContext(r.uow.ctx, "SELECT id FROM notes WHERE created_by = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes of user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan note id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *userRepository) List(query domain.ListQuery) (*domain.Page[*domain.User], error) {
	stmt, err := buildList(userColumns, query)
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.uow.tx.QueryRowContext(r.uow.ctx, "SELECT COUNT(*) FROM users"+stmt.where, stmt.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	args := append(append([]any{}, stmt.args...), stmt.limit, stmt.offset)
	rows, err := r.uow.tx.QueryContext(r.uow.ctx,
		"SELECT "+userFields+" FROM users"+stmt.where+" ORDER BY "+stmt.orderBy+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	q := query
	q.Normalize()
	return domain.NewPage(users, q.Page, q.PerPage, total), nil
}

func (r *userRepository) UsernameExists(username string) (bool, error) {
	return r.exists("username = ?", username)
}

func (r *userRepository) EmailExists(email string) (bool, error) {
	return r.exists("email = ?", email)
}

func (r *userRepository) exists(where string, arg any) (bool, error) {
	var count int
	err := r.uow.tx.QueryRowContext(r.uow.ctx, "SELECT COUNT(*) FROM users WHERE "+where, arg).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt sql.NullTime
		lastSeen  sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &createdAt, &lastSeen); err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt.Time.UTC()
	u.LastSeen = lastSeen.Time.UTC()
	return &u, nil
}
