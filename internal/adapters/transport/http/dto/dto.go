package dto

import "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"

type RegisterDTO struct {
	Username    string       `json:"username"    validate:"required"`
	Email       string       `json:"email"       validate:"required"`
	Password    string       `json:"password"    validate:"required"`
	DateOfBirth string       `json:"dateOfBirth" validate:"required"`
	Phone       *model.Phone `json:"phone,omitempty"`
}

// RegisterRequest is the wire form; the confirmation never reaches the service.
type RegisterRequest struct {
	RegisterDTO
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type VerifyDTO struct {
	Token string `json:"token" validate:"required"`
}

type RegisterResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type LoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Username  string `json:"username,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Message   string `json:"message,omitempty"`
}

type VerifyResponse struct {
	Subject string `json:"subject"`
}

// UserView is the listing shape; password hashes are never serialized.
type UserView struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	DateOfBirth string       `json:"dateOfBirth"`
	Phone       *model.Phone `json:"phone,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
}

func ToUserView(u model.User) UserView {
	return UserView{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt.Unix(),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
