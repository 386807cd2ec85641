package user

import (
	"errors"
	"slices"
	"time"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

var ErrNotFound = errors.New("user not found")

// returned by the repo when the unique email constraint trips
var ErrEmailTaken = errors.New("email already in use")

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=80"`
	Password  string `json:"password" binding:"required,min=6,max=30"`
	FirstName string `json:"firstName" binding:"required,max=50"`
	LastName  string `json:"lastName" binding:"required,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=80"`
	Password string `json:"password" binding:"required"`
}

// Summary is the admin listing shape: identity, roles and eager-loaded tasks.
type Summary struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Roles     []string      `json:"roles"`
	Tasks     []TaskSummary `json:"tasks"`
}

type TaskSummary struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	DueDate  time.Time `json:"dueDate"`
	Complete bool      `json:"complete"`
}
