// Package stats computes dashboard counters by scanning the store. Nothing
// is cached or stored; every call reflects the current state.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/authz"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

type Store interface {
	ListingsByOwner(ctx context.Context, ownerID string) ([]*repository.Listing, error)
	GetListings(ctx context.Context, ids []string) (map[string]*repository.Listing, error)
	RequestsByRequester(ctx context.Context, requesterID string) ([]*repository.Request, error)
}

// Stats holds the counters for one role; fields of the other role are omitted.
type Stats struct {
	Role domain.Role `json:"role"`

	TotalListings  *int `json:"total_listings,omitempty"`
	ActiveListings *int `json:"active_listings,omitempty"`

	TotalRequests    *int `json:"total_requests,omitempty"`
	AcceptedRequests *int `json:"accepted_requests,omitempty"`

	CompletedPickups int `json:"completed_pickups"`
}

type Aggregator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAggregator(store Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger, now: time.Now}
}

func (a *Aggregator) Compute(ctx context.Context, id domain.Identity) (*Stats, error) {
	if err := authz.Authorize(id, authz.ActionViewStats, authz.Target{Subject: id.UserID}).Err(); err != nil {
		return nil, err
	}

	switch id.Role {
	case domain.RoleDonor:
		return a.donor(ctx, id.UserID)
	case domain.RoleNGO:
		return a.ngo(ctx, id.UserID)
	default:
		return nil, fmt.Errorf("%w: unknown role", domain.ErrForbidden)
	}
}

func (a *Aggregator) donor(ctx context.Context, userID string) (*Stats, error) {
	listings, err := a.store.ListingsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	now := a.now()
	total, active, completed := len(listings), 0, 0
	for _, l := range listings {
		switch l.Effective(now) {
		case domain.ListingAvailable, domain.ListingRequested:
			active++
		case domain.ListingCompleted:
			completed++
		case domain.ListingExpired:
		}
	}
	return &Stats{
		Role:             domain.RoleDonor,
		TotalListings:    &total,
		ActiveListings:   &active,
		CompletedPickups: completed,
	}, nil
}

func (a *Aggregator) ngo(ctx context.Context, userID string) (*Stats, error) {
	requests, err := a.store.RequestsByRequester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}

	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ListingID)
	}
	listings, err := a.store.GetListings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	total, accepted, completed := len(requests), 0, 0
	for _, r := range requests {
		l, ok := listings[r.ListingID]
		if !ok {
			metrics.OperationErrorsTotal.WithLabelValues("stats").Inc()
			a.logger.Error("request references a missing listing",
				zap.String("request_id", r.ID),
				zap.String("listing_id", r.ListingID),
				zap.String("requester_id", userID),
			)
			return nil, fmt.Errorf("%w: request %s references missing listing %s", domain.ErrInternal, r.ID, r.ListingID)
		}

		if l.Status == domain.ListingCompleted {
			completed++
			continue
		}
		if r.Status == domain.RequestAccepted {
			accepted++
		}
	}
	return &Stats{
		Role:             domain.RoleNGO,
		TotalRequests:    &total,
		AcceptedRequests: &accepted,
		CompletedPickups: completed,
	}, nil
}
