package db_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	mock_database "gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
)

type statementRecorder struct {
	statements []string
}

func (r *statementRecorder) Matches(x any) bool {
	stmt, ok := x.(string)
	if ok {
		r.statements = append(r.statements, stmt)
	}
	return ok
}

func (r *statementRecorder) String() string {
	return "schema statement"
}

func (r *statementRecorder) table(name string) string {
	for _, stmt := range r.statements {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+name+" ") {
			return stmt
		}
	}
	return ""
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("applies every statement", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		recorder := &statementRecorder{}

		mockDB.EXPECT().Exec(gomock.Any(), recorder).Return(pgconn.CommandTag("CREATE TABLE"), nil).MinTimes(1)

		require.NoError(t, db.EnsureSchema(ctx, mockDB))

		for _, table := range []string{"users", "listings", "requests", "outbox_tasks"} {
			assert.NotEmpty(t, recorder.table(table), table)
		}

		requests := recorder.table("requests")
		for _, status := range []domain.RequestStatus{domain.RequestPending, domain.RequestAccepted, domain.RequestRejected} {
			assert.Contains(t, requests, "'"+string(status)+"'")
		}

		listings := recorder.table("listings")
		for _, status := range []domain.ListingStatus{domain.ListingAvailable, domain.ListingRequested, domain.ListingCompleted} {
			assert.Contains(t, listings, "'"+string(status)+"'")
		}
		assert.NotContains(t, listings, "'"+string(domain.ListingExpired)+"'")
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, errors.New("permission denied")).Times(1)

		err := db.EnsureSchema(ctx, mockDB)
		assert.ErrorContains(t, err, "failed to apply schema")
	})
}
