package customer

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("customer: not found")
	ErrEmailTaken    = errors.New("customer: email already in use")
	ErrNameRequired  = errors.New("customer: name is required")
	ErrEmailRequired = errors.New("customer: email is required")
)

type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, name, email string) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, ErrNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}

	now := time.Now().UTC()
	return &Customer{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
