package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

type countingLoader struct {
	users map[string]*repository.User
	calls int
}

func (l *countingLoader) GetUser(_ context.Context, id string) (*repository.User, error) {
	l.calls++
	u, ok := l.users[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	c := *u
	return &c, nil
}

func TestUserCache_Get(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{users: map[string]*repository.User{
		"u1": {ID: "u1", Name: "Ann", Role: "donor"},
	}}
	c := NewUserCache(loader, zap.NewNop())

	u, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)

	u.Name = "mutated"
	u, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, 1, c.Len())

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, c.Len())
}
