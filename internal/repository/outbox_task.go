package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

type EventType string

const (
	EventListingCreated   EventType = "listing.created"
	EventListingClaimed   EventType = "listing.claimed"
	EventListingCompleted EventType = "listing.completed"
)

// ListingEvent is the outbox payload for a listing lifecycle change.
type ListingEvent struct {
	Type       EventType `json:"type"`
	ListingID  string    `json:"listing_id"`
	OwnerID    string    `json:"owner_id"`
	ActorID    string    `json:"actor_id"`
	RequestID  string    `json:"request_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewOutboxTask(topic string, event ListingEvent) (*OutboxTask, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &OutboxTask{
		ID:      uuid.New(),
		Status:  TaskStatusCreated,
		Payload: payload,
		Topic:   topic,
	}, nil
}
