package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

func TestOutboxTaskRepo_CreateTx(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	ctrl := gomock.NewController(t)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := &OutboxTaskRepo{now: func() time.Time { return fixed }}

	task := &repository.OutboxTask{Payload: []byte(`{"type":"listing.created"}`), Topic: "listing_events"}

	mockTx.EXPECT().Exec(
		gomock.Any(),
		gomock.Any(),
		gomock.Any(),
		gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(task.Payload),
		gomock.Eq("listing_events"),
		gomock.Eq(fixed),
		gomock.Eq(fixed),
	).Return(nil, nil)

	assert.NoError(t, repo.CreateTx(ctx, mockTx, task))
	assert.NotEqual(t, uuid.Nil, task.ID)
}

func TestOutboxTaskRepo_UpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	t.Run("updated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := &OutboxTaskRepo{now: func() time.Time { return fixed }}

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(),
			gomock.Eq(id),
			gomock.Eq(repository.TaskStatusDone),
			gomock.Eq(1),
			gomock.Nil(),
			gomock.Eq(&fixed),
			gomock.Eq(fixed),
		).Return(pgconn.CommandTag("UPDATE 1"), nil)

		err := repo.UpdateTaskStatus(ctx, mockDB, id, repository.TaskStatusDone, 1, nil, &fixed)
		assert.NoError(t, err)
	})

	t.Run("task vanished", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := &OutboxTaskRepo{now: func() time.Time { return fixed }}

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.UpdateTaskStatus(ctx, mockDB, id, repository.TaskStatusFailed, 2, nil, nil)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}
