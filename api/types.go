package api

import (
	"context"

	"github.com/IDGHIM/TaskFlow/taskstore"
)

// Stores hands out the task store of an owner.
type Stores interface {
	Get(ctx context.Context, owner string) (*taskstore.Store, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate commands.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
}
