package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memory.New()
	logger := zap.NewNop()
	svc, err := NewService(store, cache.NewUserCache(store, logger), NewTokenService("test-secret", time.Hour), logger, bcrypt.MinCost)
	require.NoError(t, err)
	return svc
}

func donorInput(email string) RegisterInput {
	org := "Corner Bakery"
	return RegisterInput{
		Name:         "Test Donor",
		Email:        email,
		Password:     "TestPass123!",
		Role:         "donor",
		Organization: &org,
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc := newTestService(t)

		sess, err := svc.Register(ctx, donorInput("Donor@Test.com"))
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, "donor@test.com", sess.User.Email)
		assert.Equal(t, "donor", sess.User.Role)
		assert.NotEqual(t, "TestPass123!", sess.User.PasswordHash)

		id, err := svc.Verify(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, id.UserID)
		assert.Equal(t, domain.RoleDonor, id.Role)
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		svc := newTestService(t)

		_, err := svc.Register(ctx, donorInput("dup@test.com"))
		require.NoError(t, err)

		_, err = svc.Register(ctx, donorInput("DUP@test.com"))
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	})

	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"invalid role", func(in *RegisterInput) { in.Role = "admin" }, domain.ErrInvalidRole},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, domain.ErrWeakCredential},
		{"missing name", func(in *RegisterInput) { in.Name = "  " }, domain.ErrValidation},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			in := donorInput("x@test.com")
			tc.mutate(&in)

			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestService_RegisterConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := donorInput("race@test.com")
			in.Name = fmt.Sprintf("Donor %d", i)
			_, errs[i] = svc.Register(ctx, in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, succeeded)
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.Register(ctx, donorInput("login@test.com"))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		sess, err := svc.Authenticate(ctx, "LOGIN@test.com", "TestPass123!")
		require.NoError(t, err)
		assert.Equal(t, "login@test.com", sess.User.Email)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, wrongPw := svc.Authenticate(ctx, "login@test.com", "WrongPass123!")
		_, unknown := svc.Authenticate(ctx, "ghost@test.com", "TestPass123!")

		assert.ErrorIs(t, wrongPw, domain.ErrInvalidCredentials)
		assert.ErrorIs(t, unknown, domain.ErrInvalidCredentials)
		assert.Equal(t, wrongPw.Error(), unknown.Error())
	})
}

func TestService_Me(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess, err := svc.Register(ctx, donorInput("me@test.com"))
	require.NoError(t, err)

	user, err := svc.Me(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Donor", user.Name)
	require.NotNil(t, user.Organization)
	assert.Equal(t, "Corner Bakery", *user.Organization)

	_, err = svc.Me(ctx, "deleted-user")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
