package postgresql

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

const requestColumns = `id, listing_id, requester_id, message, status, created_at`

type RequestRepo struct {
	db db.DB
}

func NewRequestRepo(db db.DB) storage.RequestRepository {
	return &RequestRepo{db: db}
}

func (r *RequestRepo) CreateTx(ctx context.Context, tx db.Tx, req *repository.Request) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO requests (
            id, listing_id, requester_id, message, status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
    `, req.ID, req.ListingID, req.RequesterID, req.Message, req.Status, req.CreatedAt)
	return err
}

func (r *RequestRepo) GetByRequester(ctx context.Context, requesterID string) ([]*repository.Request, error) {
	var requests []*repository.Request
	err := r.db.Select(ctx, &requests, `
        SELECT `+requestColumns+` FROM requests
        WHERE requester_id = $1
        ORDER BY created_at ASC
    `, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests of %s: %w", requesterID, err)
	}
	return requests, nil
}

func (r *RequestRepo) GetByListing(ctx context.Context, listingID string) ([]*repository.Request, error) {
	var requests []*repository.Request
	err := r.db.Select(ctx, &requests, `
        SELECT `+requestColumns+` FROM requests
        WHERE listing_id = $1
        ORDER BY created_at ASC
    `, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests for listing %s: %w", listingID, err)
	}
	return requests, nil
}
