package postgresql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

func testListing() *repository.Listing {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &repository.Listing{
		ID:            "listing-1",
		OwnerID:       "donor-1",
		Title:         "Rice and curry",
		Description:   "Leftover from lunch service",
		Quantity:      "20 portions",
		FoodType:      domain.FoodVeg,
		PickupAddress: "12 Market St",
		ExpiryHours:   4,
		Status:        domain.ListingAvailable,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestListingRepo_CreateTx(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewListingRepo(mock_database.NewMockDB(ctrl))
		l := testListing()

		mockTx.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(l.ID),
			gomock.Eq(l.OwnerID),
			gomock.Eq(l.Title),
			gomock.Eq(l.Description),
			gomock.Eq(l.Quantity),
			gomock.Eq(l.FoodType),
			gomock.Eq(l.PickupAddress),
			gomock.Nil(),
			gomock.Eq(l.ExpiryHours),
			gomock.Eq(l.Status),
			gomock.Eq(l.CreatedAt),
			gomock.Eq(l.UpdatedAt),
		).Return(nil, nil)

		assert.NoError(t, repo.CreateTx(ctx, mockTx, l))
	})
}

func TestListingRepo_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("listing found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewListingRepo(mockDB)
		want := testListing()

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(want.ID)).
			DoAndReturn(func(_ context.Context, dest *repository.Listing, _ string, _ string) error {
				*dest = *want
				return nil
			})

		got, err := repo.GetByID(ctx, want.ID)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("listing not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewListingRepo(mockDB)

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, got)
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewListingRepo(mockDB)
		dbErr := errors.New("database error")

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(dbErr)

		got, err := repo.GetByID(ctx, "listing-1")
		assert.Equal(t, dbErr, err)
		assert.Nil(t, got)
	})
}

func TestListingRepo_CompareAndSwapTx(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)

	claim := storage.Transition{
		ListingID: "listing-1",
		ActorID:   "ngo-1",
		From:      domain.ListingAvailable,
		To:        domain.ListingRequested,
		At:        at,
	}

	t.Run("row updated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewListingRepo(mock_database.NewMockDB(ctrl))

		mockTx.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(domain.ListingRequested),
			stringPtr("ngo-1"),
			gomock.Nil(),
			gomock.Eq(at),
			gomock.Eq("listing-1"),
			gomock.Eq(domain.ListingAvailable),
		).Return(pgconn.CommandTag("UPDATE 1"), nil)

		assert.NoError(t, repo.CompareAndSwapTx(ctx, mockTx, claim))
	})

	t.Run("precondition lost", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewListingRepo(mock_database.NewMockDB(ctrl))

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.CompareAndSwapTx(ctx, mockTx, claim)
		assert.ErrorIs(t, err, repository.ErrStatusConflict)
	})

	t.Run("completion stamps completed_at", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewListingRepo(mock_database.NewMockDB(ctrl))

		complete := storage.Transition{
			ListingID: "listing-1",
			ActorID:   "donor-1",
			From:      domain.ListingRequested,
			To:        domain.ListingCompleted,
			At:        at,
		}

		mockTx.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(domain.ListingCompleted),
			gomock.Nil(),
			gomock.Eq(at),
			gomock.Eq(at),
			gomock.Eq("listing-1"),
			gomock.Eq(domain.ListingRequested),
		).Return(pgconn.CommandTag("UPDATE 1"), nil)

		assert.NoError(t, repo.CompareAndSwapTx(ctx, mockTx, complete))
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewListingRepo(mock_database.NewMockDB(ctrl))
		dbErr := errors.New("database error")

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dbErr)

		err := repo.CompareAndSwapTx(ctx, mockTx, claim)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestListingRepo_GetByOwner(t *testing.T) {
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := NewListingRepo(mockDB)
	want := []*repository.Listing{testListing()}

	mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("donor-1")).
		DoAndReturn(func(_ context.Context, dest *[]*repository.Listing, _ string, _ string) error {
			*dest = want
			return nil
		})

	got, err := repo.GetByOwner(ctx, "donor-1")
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListingRepo_GetByStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		status   domain.ListingStatus
		liveOnly bool
	}{
		{domain.ListingAvailable, true},
		{domain.ListingRequested, true},
		{domain.ListingCompleted, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockDB := mock_database.NewMockDB(ctrl)
			repo := NewListingRepo(mockDB)
			want := []*repository.Listing{testListing()}

			var query string
			mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(tc.status)).
				DoAndReturn(func(_ context.Context, dest *[]*repository.Listing, q string, _ domain.ListingStatus) error {
					query = q
					*dest = want
					return nil
				})

			got, err := repo.GetByStatus(ctx, tc.status)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Contains(t, query, "WHERE status = $1")
			assert.Equal(t, tc.liveOnly, strings.Contains(query, "make_interval(hours => expiry_hours) > now()"))
		})
	}
}

type stringPtrMatcher string

func stringPtr(want string) gomock.Matcher {
	return stringPtrMatcher(want)
}

func (m stringPtrMatcher) Matches(x interface{}) bool {
	p, ok := x.(*string)
	return ok && p != nil && *p == string(m)
}

func (m stringPtrMatcher) String() string {
	return "points to " + string(m)
}
