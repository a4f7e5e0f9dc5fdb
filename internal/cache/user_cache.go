package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

type UserLoader interface {
	GetUser(ctx context.Context, id string) (*repository.User, error)
}

// UserCache is a read-through cache of user records. Users are never
// mutated after registration, so entries never go stale.
type UserCache struct {
	mu     sync.RWMutex
	cache  map[string]*repository.User
	loader UserLoader
	logger *zap.Logger
}

func NewUserCache(loader UserLoader, logger *zap.Logger) *UserCache {
	return &UserCache{
		cache:  make(map[string]*repository.User),
		loader: loader,
		logger: logger,
	}
}

func (c *UserCache) Get(ctx context.Context, userID string) (*repository.User, error) {
	c.mu.RLock()
	user, found := c.cache[userID]
	c.mu.RUnlock()
	if found {
		userCopy := *user
		return &userCopy, nil
	}

	user, err := c.loader.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Set(user)
	return user, nil
}

func (c *UserCache) Set(user *repository.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	userCopy := *user
	c.cache[user.ID] = &userCopy
	metrics.UserCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("cache: stored user", zap.String("user_id", user.ID))
}

func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
