package matching

import (
	"time"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

// ListingView is a listing as seen at a point in time: status and
// hours_remaining are resolved against the read clock.
type ListingView struct {
	ID             string               `json:"listing_id"`
	OwnerID        string               `json:"posted_by"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Quantity       string               `json:"quantity"`
	FoodType       domain.FoodType      `json:"food_type"`
	PickupAddress  string               `json:"pickup_address"`
	ImageURL       *string              `json:"image_url,omitempty"`
	ExpiryHours    int                  `json:"expiry_hours"`
	ExpiresAt      time.Time            `json:"expiry_time"`
	Status         domain.ListingStatus `json:"status"`
	HoursRemaining float64              `json:"hours_remaining"`
	ClaimedBy      *string              `json:"claimed_by,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	Requests       []RequestView        `json:"requests,omitempty"`
}

type RequestView struct {
	ID                    string               `json:"request_id"`
	ListingID             string               `json:"listing_id"`
	RequesterID           string               `json:"requested_by"`
	RequesterName         string               `json:"requester_name,omitempty"`
	RequesterOrganization string               `json:"requester_organization,omitempty"`
	Message               *string              `json:"message,omitempty"`
	Status                domain.RequestStatus `json:"status"`
	CreatedAt             time.Time            `json:"requested_at"`
}

func newListingView(l *repository.Listing, now time.Time) ListingView {
	return ListingView{
		ID:             l.ID,
		OwnerID:        l.OwnerID,
		Title:          l.Title,
		Description:    l.Description,
		Quantity:       l.Quantity,
		FoodType:       l.FoodType,
		PickupAddress:  l.PickupAddress,
		ImageURL:       l.ImageURL,
		ExpiryHours:    l.ExpiryHours,
		ExpiresAt:      domain.ExpiresAt(l.CreatedAt, l.ExpiryHours),
		Status:         l.Effective(now),
		HoursRemaining: l.HoursRemaining(now),
		ClaimedBy:      l.ClaimedBy,
		CreatedAt:      l.CreatedAt,
		CompletedAt:    l.CompletedAt,
	}
}

func newRequestView(r *repository.Request, requester *repository.User) RequestView {
	v := RequestView{
		ID:          r.ID,
		ListingID:   r.ListingID,
		RequesterID: r.RequesterID,
		Message:     r.Message,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
	if requester != nil {
		v.RequesterName = requester.Name
		if requester.Organization != nil {
			v.RequesterOrganization = *requester.Organization
		}
	}
	return v
}
