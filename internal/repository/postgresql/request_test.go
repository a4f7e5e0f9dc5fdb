package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

func TestRequestRepo_CreateTx(t *testing.T) {
	ctx := context.Background()
	msg := "We can collect at 6pm"
	req := &repository.Request{
		ID:          "req-1",
		ListingID:   "listing-1",
		RequesterID: "ngo-1",
		Message:     &msg,
		Status:      domain.RequestAccepted,
		CreatedAt:   time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC),
	}

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewRequestRepo(mock_database.NewMockDB(ctrl))

		mockTx.EXPECT().
			Exec(gomock.Any(), gomock.Any(),
				gomock.Eq(req.ID),
				gomock.Eq(req.ListingID),
				gomock.Eq(req.RequesterID),
				gomock.Eq(req.Message),
				gomock.Eq(req.Status),
				gomock.Eq(req.CreatedAt)).
			Return(nil, nil)

		assert.NoError(t, repo.CreateTx(ctx, mockTx, req))
	})

	t.Run("DB Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewRequestRepo(mock_database.NewMockDB(ctrl))
		dbErr := errors.New("database error")

		mockTx.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dbErr)

		err := repo.CreateTx(ctx, mockTx, req)
		assert.Equal(t, dbErr, err)
	})
}

func TestRequestRepo_GetByRequester(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewRequestRepo(mockDB)
		want := []*repository.Request{
			{ID: "req-1", ListingID: "listing-1", RequesterID: "ngo-1", Status: domain.RequestAccepted},
			{ID: "req-2", ListingID: "listing-2", RequesterID: "ngo-1", Status: domain.RequestAccepted},
		}

		mockDB.EXPECT().
			Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("ngo-1")).
			DoAndReturn(func(_ context.Context, dest *[]*repository.Request, _ string, _ string) error {
				*dest = want
				return nil
			})

		got, err := repo.GetByRequester(ctx, "ngo-1")
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("DB Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewRequestRepo(mockDB)
		dbErr := errors.New("database error")

		mockDB.EXPECT().
			Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dbErr)

		got, err := repo.GetByRequester(ctx, "ngo-1")
		assert.ErrorIs(t, err, dbErr)
		assert.Nil(t, got)
	})
}
