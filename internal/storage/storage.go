package storage

import (
	"context"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

// Transition is a conditional status write on one listing. It applies only
// if the persisted status equals From and the listing has not expired at At.
type Transition struct {
	ListingID string
	OwnerID   string
	ActorID   string
	From      domain.ListingStatus
	To        domain.ListingStatus
	At        time.Time
}

// Store is the storage abstraction the services are built on. Claim is the
// only operation that must be linearizable across callers. ListingsByStatus
// may leave out listings that have already expired; callers still resolve
// the effective status themselves.
type Store interface {
	CreateUser(ctx context.Context, user *repository.User) error
	GetUser(ctx context.Context, id string) (*repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (*repository.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*repository.User, error)

	GetListing(ctx context.Context, id string) (*repository.Listing, error)
	GetListings(ctx context.Context, ids []string) (map[string]*repository.Listing, error)
	PutListing(ctx context.Context, listing *repository.Listing) error
	CompareAndSwap(ctx context.Context, t Transition) error
	Claim(ctx context.Context, t Transition, req *repository.Request) error
	ListingsByOwner(ctx context.Context, ownerID string) ([]*repository.Listing, error)
	ListingsByStatus(ctx context.Context, status domain.ListingStatus) ([]*repository.Listing, error)

	RequestsByRequester(ctx context.Context, requesterID string) ([]*repository.Request, error)
	RequestsByListing(ctx context.Context, listingID string) ([]*repository.Request, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*repository.User, error)
}

type ListingRepository interface {
	GetByID(ctx context.Context, id string) (*repository.Listing, error)
	GetByIDs(ctx context.Context, ids []string) ([]*repository.Listing, error)
	CreateTx(ctx context.Context, tx db.Tx, listing *repository.Listing) error
	CompareAndSwapTx(ctx context.Context, tx db.Tx, t Transition) error
	GetByOwner(ctx context.Context, ownerID string) ([]*repository.Listing, error)
	GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*repository.Listing, error)
}

type RequestRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, req *repository.Request) error
	GetByRequester(ctx context.Context, requesterID string) ([]*repository.Request, error)
	GetByListing(ctx context.Context, listingID string) ([]*repository.Request, error)
}
