package service

import (
	"context"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
)

// PartLookup resolves parts from the master-data module.
type PartLookup interface {
	FindByID(ctx context.Context, id string) (*entity.Part, error)
}

// UserLookup resolves requestors and reviewers.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

// CodeGenerator produces human-readable document codes and record ids.
type CodeGenerator interface {
	NextSequentialCode(ctx context.Context, prefix string) (string, error)
	NewID() string
}

// EventPublisher receives committed changes. SendToUser targets one user's clients.
type EventPublisher interface {
	Publish(event sse.Event)
	SendToUser(userID string, event sse.Event)
}
