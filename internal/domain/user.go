package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
}

type UserResponse struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	IsAdmin     bool    `json:"is_admin"`
	TsCreatedAt float64 `json:"ts_created_at"`
	TsLastSeen  float64 `json:"ts_last_seen"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		TsCreatedAt: Timestamp(u.CreatedAt),
		TsLastSeen:  Timestamp(u.LastSeen),
	}
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserChanges holds the optional fields of a user modification.
type UserChanges struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type ModifyUserRequest struct {
	Username string      `json:"username" validate:"required"`
	Modify   UserChanges `json:"modify"`
}

type SetAdminRequest struct {
	Username string `json:"username" validate:"required"`
	Value    bool   `json:"value"`
}

type DeleteUserRequest struct {
	Username string `json:"username" validate:"required"`
}

type UserIDResponse struct {
	UserID int64 `json:"user_id"`
}

type DeletedUserResponse struct {
	DeletedUserID int64 `json:"deleted_user_id"`
}

type UserModifiedResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func (u *User) ToModifiedResponse() *UserModifiedResponse {
	return &UserModifiedResponse{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken    string  `json:"access_token"`
	AccessExpires  float64 `json:"access_expires"`
	RefreshToken   string  `json:"refresh_token"`
	RefreshExpires float64 `json:"refresh_expires"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// CanAccess reports whether p may read or change data owned by ownerID.
func (p Principal) CanAccess(ownerID int64) bool {
	return p.IsAdmin || p.UserID == ownerID
}
