// Package matching owns the listing lifecycle: creation, the claim race
// between relief organizations, and completion by the donor.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/authz"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

type ListingInput struct {
	Title         string
	Description   string
	Quantity      string
	FoodType      string
	PickupAddress string
	ExpiryHours   int
	ImageURL      *string
}

type Engine struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(store storage.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (e *Engine) CreateListing(ctx context.Context, id domain.Identity, in ListingInput) (*ListingView, error) {
	if err := authz.Authorize(id, authz.ActionCreateListing, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	listing, err := e.buildListing(id.UserID, in)
	if err != nil {
		return nil, err
	}
	if err := e.store.PutListing(ctx, listing); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create_listing").Inc()
		return nil, fmt.Errorf("failed to store listing: %w", err)
	}

	metrics.ListingsCreatedTotal.Inc()
	e.logger.Info("listing created",
		zap.String("listing_id", listing.ID),
		zap.String("owner_id", listing.OwnerID),
		zap.Int("expiry_hours", listing.ExpiryHours),
	)
	view := newListingView(listing, e.now())
	return &view, nil
}

func (e *Engine) buildListing(ownerID string, in ListingInput) (*repository.Listing, error) {
	required := []struct{ field, value string }{
		{"title", in.Title},
		{"description", in.Description},
		{"quantity", in.Quantity},
		{"pickup_address", in.PickupAddress},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, domain.NewValidationError(r.field, "is required")
		}
	}
	foodType, err := domain.ParseFoodType(strings.TrimSpace(in.FoodType))
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateExpiryHours(in.ExpiryHours); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	return &repository.Listing{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Quantity:      strings.TrimSpace(in.Quantity),
		FoodType:      foodType,
		PickupAddress: strings.TrimSpace(in.PickupAddress),
		ImageURL:      optional(in.ImageURL),
		ExpiryHours:   in.ExpiryHours,
		Status:        domain.ListingAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ListVisible returns the caller's feed: a donor's own listings in any state,
// or every listing an ngo could claim right now.
func (e *Engine) ListVisible(ctx context.Context, id domain.Identity) ([]ListingView, error) {
	if err := authz.Authorize(id, authz.ActionViewListings, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	var (
		listings []*repository.Listing
		err      error
	)
	switch id.Role {
	case domain.RoleDonor:
		listings, err = e.store.ListingsByOwner(ctx, id.UserID)
	case domain.RoleNGO:
		listings, err = e.store.ListingsByStatus(ctx, domain.ListingAvailable)
	default:
		return nil, fmt.Errorf("%w: unknown role", domain.ErrForbidden)
	}
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("list_listings").Inc()
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	now := e.now()
	views := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		view := newListingView(l, now)
		if !authz.Visible(id, target(l, view.Status)) {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// GetListing returns one listing. The owning donor also gets the requests
// made against it.
func (e *Engine) GetListing(ctx context.Context, id domain.Identity, listingID string) (*ListingView, error) {
	listing, err := e.load(ctx, listingID)
	if err != nil {
		return nil, err
	}

	view := newListingView(listing, e.now())
	if err := authz.Authorize(id, authz.ActionViewListing, target(listing, view.Status)).Err(); err != nil {
		return nil, err
	}
	if listing.OwnerID != id.UserID {
		return &view, nil
	}

	requests, err := e.store.RequestsByListing(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.RequesterID)
	}
	requesters, err := e.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load requesters: %w", err)
	}
	view.Requests = make([]RequestView, 0, len(requests))
	for _, r := range requests {
		view.Requests = append(view.Requests, newRequestView(r, requesters[r.RequesterID]))
	}
	return &view, nil
}

// SubmitRequest claims an available listing for the calling ngo. Acceptance
// is immediate; a listing that is not available, or was claimed by someone
// else first, yields ErrListingUnavailable and leaves no request behind.
func (e *Engine) SubmitRequest(ctx context.Context, id domain.Identity, listingID string, message *string) (*repository.Request, error) {
	if err := authz.Authorize(id, authz.ActionCreateRequest, authz.Target{}).Err(); err != nil {
		return nil, err
	}
	listing, err := e.load(ctx, listingID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if status := listing.Effective(now); status != domain.ListingAvailable {
		metrics.ClaimsRejectedTotal.WithLabelValues(string(status)).Inc()
		return nil, fmt.Errorf("%w: listing %s is %s", domain.ErrListingUnavailable, listingID, status)
	}

	req := &repository.Request{
		ID:          uuid.NewString(),
		ListingID:   listing.ID,
		RequesterID: id.UserID,
		Message:     optional(message),
		Status:      domain.RequestAccepted,
		CreatedAt:   now.UTC(),
	}
	err = e.store.Claim(ctx, storage.Transition{
		ListingID: listing.ID,
		OwnerID:   listing.OwnerID,
		ActorID:   id.UserID,
		From:      domain.ListingAvailable,
		To:        domain.ListingRequested,
		At:        now,
	}, req)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.ClaimsRejectedTotal.WithLabelValues("lost_race").Inc()
			return nil, fmt.Errorf("%w: listing %s was claimed concurrently", domain.ErrListingUnavailable, listingID)
		}
		metrics.OperationErrorsTotal.WithLabelValues("claim_listing").Inc()
		return nil, fmt.Errorf("failed to claim listing: %w", err)
	}

	metrics.ClaimsAcceptedTotal.Inc()
	e.logger.Info("listing claimed",
		zap.String("listing_id", listing.ID),
		zap.String("request_id", req.ID),
		zap.String("requester_id", id.UserID),
	)
	return req, nil
}

// CompleteListing records the pickup of a claimed listing by its donor.
func (e *Engine) CompleteListing(ctx context.Context, id domain.Identity, listingID string) (*ListingView, error) {
	listing, err := e.load(ctx, listingID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	status := listing.Effective(now)
	if err := authz.Authorize(id, authz.ActionCompleteListing, target(listing, status)).Err(); err != nil {
		return nil, err
	}
	if status != domain.ListingRequested {
		return nil, fmt.Errorf("%w: listing %s is %s", domain.ErrInvalidState, listingID, status)
	}

	err = e.store.CompareAndSwap(ctx, storage.Transition{
		ListingID: listing.ID,
		OwnerID:   listing.OwnerID,
		ActorID:   id.UserID,
		From:      domain.ListingRequested,
		To:        domain.ListingCompleted,
		At:        now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: listing %s changed concurrently", domain.ErrInvalidState, listingID)
		}
		metrics.OperationErrorsTotal.WithLabelValues("complete_listing").Inc()
		return nil, fmt.Errorf("failed to complete listing: %w", err)
	}

	metrics.ListingsCompletedTotal.Inc()
	e.logger.Info("listing completed", zap.String("listing_id", listing.ID))

	completedAt := now.UTC()
	listing.Status = domain.ListingCompleted
	listing.CompletedAt = &completedAt
	listing.UpdatedAt = completedAt
	view := newListingView(listing, now)
	return &view, nil
}

func (e *Engine) load(ctx context.Context, listingID string) (*repository.Listing, error) {
	listing, err := e.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", listingID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

func target(l *repository.Listing, status domain.ListingStatus) authz.Target {
	t := authz.Target{OwnerID: l.OwnerID, Status: status}
	if l.ClaimedBy != nil {
		t.ClaimedBy = *l.ClaimedBy
	}
	return t
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
