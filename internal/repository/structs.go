package repository

import (
	"errors"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
)

var (
	ErrObjectNotFound = fmt.Errorf("object %w", domain.ErrNotFound)
	// ErrStatusConflict means a conditional write found the row in another state.
	ErrStatusConflict = errors.New("status precondition failed")
)

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Phone        *string   `db:"phone"`
	Address      *string   `db:"address"`
	Organization *string   `db:"organization"`
	CreatedAt    time.Time `db:"created_at"`
}

type Listing struct {
	ID            string               `db:"id"`
	OwnerID       string               `db:"owner_id"`
	Title         string               `db:"title"`
	Description   string               `db:"description"`
	Quantity      string               `db:"quantity"`
	FoodType      domain.FoodType      `db:"food_type"`
	PickupAddress string               `db:"pickup_address"`
	ImageURL      *string              `db:"image_url"`
	ExpiryHours   int                  `db:"expiry_hours"`
	Status        domain.ListingStatus `db:"status"`
	ClaimedBy     *string              `db:"claimed_by"`
	CreatedAt     time.Time            `db:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at"`
	CompletedAt   *time.Time           `db:"completed_at"`
}

// Effective is the listing's status after the expiry rule at now.
func (l *Listing) Effective(now time.Time) domain.ListingStatus {
	return domain.EffectiveStatus(l.Status, l.CreatedAt, l.ExpiryHours, now)
}

func (l *Listing) HoursRemaining(now time.Time) float64 {
	return domain.HoursRemaining(l.CreatedAt, l.ExpiryHours, now)
}

type Request struct {
	ID          string               `db:"id"`
	ListingID   string               `db:"listing_id"`
	RequesterID string               `db:"requester_id"`
	Message     *string              `db:"message"`
	Status      domain.RequestStatus `db:"status"`
	CreatedAt   time.Time            `db:"created_at"`
}
