package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

const listingColumns = `id, owner_id, title, description, quantity, food_type, pickup_address, image_url,
        expiry_hours, status, claimed_by, created_at, updated_at, completed_at`

type ListingRepo struct {
	db db.DB
}

func NewListingRepo(db db.DB) storage.ListingRepository {
	return &ListingRepo{db: db}
}

func (r *ListingRepo) CreateTx(ctx context.Context, tx db.Tx, listing *repository.Listing) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO listings (
            id, owner_id, title, description, quantity, food_type, pickup_address, image_url,
            expiry_hours, status, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, listing.ID, listing.OwnerID, listing.Title, listing.Description, listing.Quantity, listing.FoodType,
		listing.PickupAddress, listing.ImageURL, listing.ExpiryHours, listing.Status, listing.CreatedAt, listing.UpdatedAt)
	return err
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*repository.Listing, error) {
	var listing repository.Listing
	err := r.db.Get(ctx, &listing, "SELECT "+listingColumns+" FROM listings WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &listing, nil
}

func (r *ListingRepo) GetByIDs(ctx context.Context, ids []string) ([]*repository.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var listings []*repository.Listing
	err := r.db.Select(ctx, &listings, "SELECT "+listingColumns+" FROM listings WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	return listings, nil
}

// CompareAndSwapTx is a single conditional UPDATE: the status and expiry
// preconditions and the write happen in one statement, so concurrent callers
// serialize on the row lock and only the first sees a matching row.
func (r *ListingRepo) CompareAndSwapTx(ctx context.Context, tx db.Tx, t storage.Transition) error {
	var claimedBy *string
	if t.To == domain.ListingRequested {
		claimedBy = &t.ActorID
	}
	var completedAt interface{}
	if t.To == domain.ListingCompleted {
		completedAt = t.At
	}

	tag, err := tx.Exec(ctx, `
        UPDATE listings
        SET
            status = $1,
            claimed_by = COALESCE($2, claimed_by),
            completed_at = COALESCE($3, completed_at),
            updated_at = $4
        WHERE id = $5
          AND status = $6
          AND created_at + make_interval(hours => expiry_hours) > $4
    `, t.To, claimedBy, completedAt, t.At, t.ListingID, t.From)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", t.ListingID, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

func (r *ListingRepo) GetByOwner(ctx context.Context, ownerID string) ([]*repository.Listing, error) {
	var listings []*repository.Listing
	err := r.db.Select(ctx, &listings,
		"SELECT "+listingColumns+" FROM listings WHERE owner_id = $1 ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings of owner %s: %w", ownerID, err)
	}
	return listings, nil
}

// GetByStatus skips listings whose expiry has passed unless status is
// completed, which expiry no longer affects.
func (r *ListingRepo) GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*repository.Listing, error) {
	query := "SELECT " + listingColumns + " FROM listings WHERE status = $1"
	if status != domain.ListingCompleted {
		query += " AND created_at + make_interval(hours => expiry_hours) > now()"
	}
	query += " ORDER BY created_at DESC"

	var listings []*repository.Listing
	err := r.db.Select(ctx, &listings, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s listings: %w", status, err)
	}
	return listings, nil
}
