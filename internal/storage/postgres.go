package storage

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

// PostgresStore writes every listing state change together with its outbox
// event in one transaction.
type PostgresStore struct {
	db          db.DB
	userRepo    UserRepository
	listingRepo ListingRepository
	requestRepo RequestRepository
	outboxRepo  OutboxTaskRepository
	topic       string
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(
	database db.DB,
	userRepo UserRepository,
	listingRepo ListingRepository,
	requestRepo RequestRepository,
	outboxRepo OutboxTaskRepository,
	topic string,
) *PostgresStore {
	return &PostgresStore{
		db:          database,
		userRepo:    userRepo,
		listingRepo: listingRepo,
		requestRepo: requestRepo,
		outboxRepo:  outboxRepo,
		topic:       topic,
	}
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx db.Tx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) enqueue(ctx context.Context, tx db.Tx, event repository.ListingEvent) error {
	task, err := repository.NewOutboxTask(s.topic, event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	if err := s.outboxRepo.CreateTx(ctx, tx, task); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *repository.User) error {
	return s.userRepo.Create(ctx, user)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*repository.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	return s.userRepo.GetByEmail(ctx, email)
}

func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) (map[string]*repository.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*repository.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*repository.Listing, error) {
	return s.listingRepo.GetByID(ctx, id)
}

func (s *PostgresStore) GetListings(ctx context.Context, ids []string) (map[string]*repository.Listing, error) {
	listings, err := s.listingRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*repository.Listing, len(listings))
	for _, l := range listings {
		out[l.ID] = l
	}
	return out, nil
}

func (s *PostgresStore) PutListing(ctx context.Context, listing *repository.Listing) error {
	return s.withTx(ctx, func(tx db.Tx) error {
		if err := s.listingRepo.CreateTx(ctx, tx, listing); err != nil {
			return fmt.Errorf("failed to insert listing: %w", err)
		}
		return s.enqueue(ctx, tx, repository.ListingEvent{
			Type:       repository.EventListingCreated,
			ListingID:  listing.ID,
			OwnerID:    listing.OwnerID,
			ActorID:    listing.OwnerID,
			NewStatus:  string(listing.Status),
			OccurredAt: listing.CreatedAt,
		})
	})
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, t Transition) error {
	return s.withTx(ctx, func(tx db.Tx) error {
		if err := s.listingRepo.CompareAndSwapTx(ctx, tx, t); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, transitionEvent(t, ""))
	})
}

func (s *PostgresStore) Claim(ctx context.Context, t Transition, req *repository.Request) error {
	return s.withTx(ctx, func(tx db.Tx) error {
		if err := s.listingRepo.CompareAndSwapTx(ctx, tx, t); err != nil {
			return err
		}
		if err := s.requestRepo.CreateTx(ctx, tx, req); err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}
		return s.enqueue(ctx, tx, transitionEvent(t, req.ID))
	})
}

func (s *PostgresStore) ListingsByOwner(ctx context.Context, ownerID string) ([]*repository.Listing, error) {
	return s.listingRepo.GetByOwner(ctx, ownerID)
}

func (s *PostgresStore) ListingsByStatus(ctx context.Context, status domain.ListingStatus) ([]*repository.Listing, error) {
	return s.listingRepo.GetByStatus(ctx, status)
}

func (s *PostgresStore) RequestsByRequester(ctx context.Context, requesterID string) ([]*repository.Request, error) {
	return s.requestRepo.GetByRequester(ctx, requesterID)
}

func (s *PostgresStore) RequestsByListing(ctx context.Context, listingID string) ([]*repository.Request, error) {
	return s.requestRepo.GetByListing(ctx, listingID)
}

func transitionEvent(t Transition, requestID string) repository.ListingEvent {
	eventType := repository.EventListingCompleted
	if t.To == domain.ListingRequested {
		eventType = repository.EventListingClaimed
	}
	return repository.ListingEvent{
		Type:       eventType,
		ListingID:  t.ListingID,
		OwnerID:    t.OwnerID,
		ActorID:    t.ActorID,
		RequestID:  requestID,
		OldStatus:  string(t.From),
		NewStatus:  string(t.To),
		OccurredAt: t.At,
	}
}
