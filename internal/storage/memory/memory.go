// Package memory is a mutex-guarded Store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*repository.User
	emails   map[string]string
	listings map[string]*repository.Listing
	requests []*repository.Request
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]*repository.User),
		emails:   make(map[string]string),
		listings: make(map[string]*repository.Listing),
	}
}

func (s *Store) CreateUser(_ context.Context, user *repository.User) error {
	key := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[key]; taken {
		return domain.ErrDuplicateEmail
	}
	if _, taken := s.users[user.ID]; taken {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	u := *user
	s.users[user.ID] = &u
	s.emails[key] = user.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*repository.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

func (s *Store) GetListing(_ context.Context, id string) (*repository.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	out := *l
	return &out, nil
}

func (s *Store) GetListings(_ context.Context, ids []string) (map[string]*repository.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*repository.Listing, len(ids))
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			c := *l
			out[id] = &c
		}
	}
	return out, nil
}

func (s *Store) PutListing(_ context.Context, listing *repository.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[listing.ID]; exists {
		return fmt.Errorf("listing %s already exists", listing.ID)
	}
	l := *listing
	s.listings[listing.ID] = &l
	return nil
}

// swapLocked must be called with mu held for writing.
func (s *Store) swapLocked(t storage.Transition) error {
	l, ok := s.listings[t.ListingID]
	if !ok {
		return repository.ErrObjectNotFound
	}
	if l.Status != t.From || l.Effective(t.At) != t.From {
		return repository.ErrStatusConflict
	}

	l.Status = t.To
	l.UpdatedAt = t.At
	switch t.To {
	case domain.ListingRequested:
		claimant := t.ActorID
		l.ClaimedBy = &claimant
	case domain.ListingCompleted:
		at := t.At
		l.CompletedAt = &at
	}
	return nil
}

func (s *Store) CompareAndSwap(_ context.Context, t storage.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapLocked(t)
}

func (s *Store) Claim(_ context.Context, t storage.Transition, req *repository.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.swapLocked(t); err != nil {
		return err
	}
	r := *req
	s.requests = append(s.requests, &r)
	return nil
}

func (s *Store) ListingsByOwner(_ context.Context, ownerID string) ([]*repository.Listing, error) {
	return s.filterListings(func(l *repository.Listing) bool { return l.OwnerID == ownerID }), nil
}

func (s *Store) ListingsByStatus(_ context.Context, status domain.ListingStatus) ([]*repository.Listing, error) {
	return s.filterListings(func(l *repository.Listing) bool { return l.Status == status }), nil
}

func (s *Store) filterListings(keep func(*repository.Listing) bool) []*repository.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*repository.Listing
	for _, l := range s.listings {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) RequestsByRequester(_ context.Context, requesterID string) ([]*repository.Request, error) {
	return s.filterRequests(func(r *repository.Request) bool { return r.RequesterID == requesterID }), nil
}

func (s *Store) RequestsByListing(_ context.Context, listingID string) ([]*repository.Request, error) {
	return s.filterRequests(func(r *repository.Request) bool { return r.ListingID == listingID }), nil
}

func (s *Store) filterRequests(keep func(*repository.Request) bool) []*repository.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*repository.Request
	for _, r := range s.requests {
		if keep(r) {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}
