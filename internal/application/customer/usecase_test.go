package customer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/Zhima-Mochi/minishop-orders/internal/application/customer"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
)

func TestCreateCustomer(t *testing.T) {
	repo := memory.NewCustomerRepository()
	uc := app.NewCreateCustomerUseCase(repo, id.NewUUIDGenerator(), nil)

	c, err := uc.Execute(context.Background(), app.CreateCustomerInput{Name: " Ada ", Email: "Ada@Example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)

	stored, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Email, stored.Email)
}

func TestCreateCustomerRejects(t *testing.T) {
	uc := app.NewCreateCustomerUseCase(memory.NewCustomerRepository(), id.NewUUIDGenerator(), nil)
	ctx := context.Background()

	_, err := uc.Execute(ctx, app.CreateCustomerInput{Email: "a@b.c"})
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = uc.Execute(ctx, app.CreateCustomerInput{Name: "Ada"})
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = uc.Execute(ctx, app.CreateCustomerInput{Name: "Ada", Email: "a@b.c"})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, app.CreateCustomerInput{Name: "Grace", Email: "A@B.C"})
	assert.ErrorIs(t, err, app.ErrEmailTaken)
}
