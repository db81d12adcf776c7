package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a row of the users table. UserID and IsActive are filled in by the database.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID      uuid.UUID `bun:"user_id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	Name        string    `bun:"name,notnull"`
	Surname     string    `bun:"surname,notnull"`
	ClassNumber *int      `bun:"class_number"`
	ExamType    *string   `bun:"exam_type"`
	Email       string    `bun:"email,notnull,unique"`
	Telegram    *string   `bun:"telegram"`
	IsActive    bool      `bun:"is_active,nullzero,default:true"`
}

// CreateUserRequest is the body of POST /user/. Every key must be present.
type CreateUserRequest struct {
	Name        string  `json:"name" validate:"required,max=150,letters"`
	Surname     string  `json:"surname" validate:"required,max=150,letters"`
	ClassNumber *int    `json:"class_number" validate:"required,min=-2147483648,max=2147483647"`
	ExamType    *string `json:"exam_type" validate:"required,max=150"`
	Email       string  `json:"email" validate:"required,email,max=150"`
	Telegram    *string `json:"telegram" validate:"required,max=150"`
}

// Attributes are the column values of a new user.
type Attributes struct {
	Name        string
	Surname     string
	ClassNumber *int
	ExamType    *string
	Email       string
	Telegram    *string
}

func (r CreateUserRequest) Attributes() Attributes {
	return Attributes{
		Name:        r.Name,
		Surname:     r.Surname,
		ClassNumber: r.ClassNumber,
		ExamType:    r.ExamType,
		Email:       r.Email,
		Telegram:    r.Telegram,
	}
}

type UserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	ClassNumber *int      `json:"class_number"`
	ExamType    *string   `json:"exam_type"`
	Email       string    `json:"email"`
	Telegram    *string   `json:"telegram"`
	IsActive    bool      `json:"is_active"`
}

func ToResponse(u *User) UserResponse {
	return UserResponse{
		UserID:      u.UserID,
		Name:        u.Name,
		Surname:     u.Surname,
		ClassNumber: u.ClassNumber,
		ExamType:    u.ExamType,
		Email:       u.Email,
		Telegram:    u.Telegram,
		IsActive:    u.IsActive,
	}
}

// UserRegisteredEvent is published once a new user is committed.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	RegisteredAt time.Time `json:"registered_at"`
}

func NewUserRegisteredEvent(u *User, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		UserID:       u.UserID,
		Email:        u.Email,
		Name:         u.Name,
		Surname:      u.Surname,
		RegisteredAt: at.UTC(),
	}
}
