package taskstore

import (
	"context"
	"strconv"

	"github.com/IDGHIM/TaskFlow/domain"
)

// Persister keeps task lists beyond the process lifetime.
type Persister interface {
	// Load returns the stored state of owner. found is false when nothing was
	// stored yet.
	Load(ctx context.Context, owner string) (state domain.State, found bool, err error)
	// Save replaces the stored task records of owner with those in state.
	Save(ctx context.Context, owner string, state domain.State) error
}

// Publisher forwards task events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

// Event is a domain event stamped with its owner and time.
type Event struct {
	ID         string           `json:"id"`
	EntityID   string           `json:"entityId"`
	EntityType string           `json:"entityType"`
	Type       domain.EventType `json:"type"`
	Data       domain.Task      `json:"data"`
	Time       int64            `json:"time"`
	UserID     string           `json:"userId"`
}

func newEvent(id, owner string, ev domain.Event) Event {
	return Event{
		ID:         id,
		EntityID:   strconv.FormatInt(ev.Task.ID, 10),
		EntityType: "task",
		Type:       ev.Type,
		Data:       ev.Task,
		Time:       nextTimestamp(),
		UserID:     owner,
	}
}
