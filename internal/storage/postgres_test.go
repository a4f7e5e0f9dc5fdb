package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

const testTopic = "listing-events"

// sqlLike matches a query by a fragment of its text.
type sqlLike string

func (m sqlLike) Matches(x any) bool {
	query, ok := x.(string)
	return ok && strings.Contains(query, string(m))
}

func (m sqlLike) String() string {
	return fmt.Sprintf("query containing %q", string(m))
}

// eventCapture records the outbox payload passed to the insert.
type eventCapture struct {
	events []repository.ListingEvent
}

func (c *eventCapture) Matches(x any) bool {
	payload, ok := x.(json.RawMessage)
	if !ok {
		return false
	}
	var event repository.ListingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func (c *eventCapture) String() string {
	return "listing event payload"
}

type storeFixture struct {
	db    *mock_database.MockDB
	tx    *mock_database.MockTx
	store *storage.PostgresStore
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	return &storeFixture{
		db: mockDB,
		tx: mock_database.NewMockTx(ctrl),
		store: storage.NewPostgresStore(
			mockDB,
			postgresql.NewUserRepo(mockDB),
			postgresql.NewListingRepo(mockDB),
			postgresql.NewRequestRepo(mockDB),
			postgresql.NewOutboxTaskRepo(),
			testTopic,
		),
	}
}

func (f *storeFixture) expectSwap(tag string) *gomock.Call {
	return f.tx.EXPECT().Exec(gomock.Any(), sqlLike("UPDATE listings"),
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
	).Return(pgconn.CommandTag(tag), nil)
}

func (f *storeFixture) expectOutbox(capture *eventCapture) *gomock.Call {
	return f.tx.EXPECT().Exec(gomock.Any(), sqlLike("INSERT INTO outbox_tasks"),
		gomock.Any(), gomock.Eq(repository.TaskStatusCreated), capture, gomock.Eq(testTopic), gomock.Any(), gomock.Any(),
	).Return(pgconn.CommandTag("INSERT 0 1"), nil)
}

func claimTransition() storage.Transition {
	return storage.Transition{
		ListingID: "listing-1",
		OwnerID:   "donor-1",
		ActorID:   "ngo-1",
		From:      domain.ListingAvailable,
		To:        domain.ListingRequested,
		At:        time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC),
	}
}

func claimRequest() *repository.Request {
	return &repository.Request{
		ID:          "request-1",
		ListingID:   "listing-1",
		RequesterID: "ngo-1",
		Status:      domain.RequestAccepted,
		CreatedAt:   time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC),
	}
}

func TestPostgresStore_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newStoreFixture(t)
		capture := &eventCapture{}
		req := claimRequest()

		gomock.InOrder(
			f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil),
			f.expectSwap("UPDATE 1"),
			f.tx.EXPECT().Exec(gomock.Any(), sqlLike("INSERT INTO requests"),
				gomock.Eq(req.ID), gomock.Eq(req.ListingID), gomock.Eq(req.RequesterID),
				gomock.Any(), gomock.Eq(req.Status), gomock.Eq(req.CreatedAt),
			).Return(pgconn.CommandTag("INSERT 0 1"), nil),
			f.expectOutbox(capture),
			f.tx.EXPECT().Commit(gomock.Any()).Return(nil),
		)
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		require.NoError(t, f.store.Claim(ctx, claimTransition(), req))

		require.Len(t, capture.events, 1)
		event := capture.events[0]
		assert.Equal(t, repository.EventListingClaimed, event.Type)
		assert.Equal(t, "listing-1", event.ListingID)
		assert.Equal(t, "donor-1", event.OwnerID)
		assert.Equal(t, "ngo-1", event.ActorID)
		assert.Equal(t, "request-1", event.RequestID)
		assert.Equal(t, "available", event.OldStatus)
		assert.Equal(t, "requested", event.NewStatus)
	})

	t.Run("status conflict rolls back", func(t *testing.T) {
		f := newStoreFixture(t)

		f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil)
		f.expectSwap("UPDATE 0")
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := f.store.Claim(ctx, claimTransition(), claimRequest())
		assert.ErrorIs(t, err, repository.ErrStatusConflict)
	})

	t.Run("request insert failure writes no event", func(t *testing.T) {
		f := newStoreFixture(t)
		insertErr := errors.New("unique violation")

		f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil)
		f.expectSwap("UPDATE 1")
		f.tx.EXPECT().Exec(gomock.Any(), sqlLike("INSERT INTO requests"),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(nil, insertErr)
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := f.store.Claim(ctx, claimTransition(), claimRequest())
		assert.ErrorIs(t, err, insertErr)
	})

	t.Run("begin failure", func(t *testing.T) {
		f := newStoreFixture(t)
		f.db.EXPECT().BeginTx(gomock.Any()).Return(nil, errors.New("pool closed"))

		err := f.store.Claim(ctx, claimTransition(), claimRequest())
		assert.ErrorContains(t, err, "failed to begin transaction")
	})
}

func TestPostgresStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()

	t.Run("completion event", func(t *testing.T) {
		f := newStoreFixture(t)
		capture := &eventCapture{}
		tr := claimTransition()
		tr.ActorID = "donor-1"
		tr.From, tr.To = domain.ListingRequested, domain.ListingCompleted

		gomock.InOrder(
			f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil),
			f.expectSwap("UPDATE 1"),
			f.expectOutbox(capture),
			f.tx.EXPECT().Commit(gomock.Any()).Return(nil),
		)
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		require.NoError(t, f.store.CompareAndSwap(ctx, tr))

		require.Len(t, capture.events, 1)
		assert.Equal(t, repository.EventListingCompleted, capture.events[0].Type)
		assert.Equal(t, "requested", capture.events[0].OldStatus)
		assert.Equal(t, "completed", capture.events[0].NewStatus)
		assert.Empty(t, capture.events[0].RequestID)
	})

	t.Run("commit failure", func(t *testing.T) {
		f := newStoreFixture(t)

		f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil)
		f.expectSwap("UPDATE 1")
		f.expectOutbox(&eventCapture{})
		f.tx.EXPECT().Commit(gomock.Any()).Return(errors.New("connection reset"))
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := f.store.CompareAndSwap(ctx, claimTransition())
		assert.ErrorContains(t, err, "failed to commit transaction")
	})
}

func TestPostgresStore_PutListing(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	capture := &eventCapture{}
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	listing := &repository.Listing{
		ID:          "listing-1",
		OwnerID:     "donor-1",
		Title:       "Bread",
		FoodType:    domain.FoodVeg,
		ExpiryHours: 6,
		Status:      domain.ListingAvailable,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	columns := make([]any, 12)
	for i := range columns {
		columns[i] = gomock.Any()
	}
	gomock.InOrder(
		f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil),
		f.tx.EXPECT().Exec(gomock.Any(), sqlLike("INSERT INTO listings"), columns...).Return(pgconn.CommandTag("INSERT 0 1"), nil),
		f.expectOutbox(capture),
		f.tx.EXPECT().Commit(gomock.Any()).Return(nil),
	)
	f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	require.NoError(t, f.store.PutListing(ctx, listing))

	require.Len(t, capture.events, 1)
	assert.Equal(t, repository.EventListingCreated, capture.events[0].Type)
	assert.Equal(t, "available", capture.events[0].NewStatus)
	assert.True(t, created.Equal(capture.events[0].OccurredAt))
}
