package customer

import "context"

type Repository interface {
	// Insert fails with ErrEmailTaken when another customer owns the email.
	Insert(ctx context.Context, c *Customer) error
	// FindByID returns ErrNotFound when no customer has the id.
	FindByID(ctx context.Context, id string) (*Customer, error)
}
