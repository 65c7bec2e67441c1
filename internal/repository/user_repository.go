package repository

import (
	"context"

	"slack-bridge/internal/domain/entity"
)

// UserRepository returns nil, nil for an unknown id.
type UserRepository interface {
	Get(ctx context.Context, id int64) (*entity.User, error)
}

// UserWriter is implemented by user directories that remember the profiles
// carried on events.
type UserWriter interface {
	Upsert(ctx context.Context, u entity.User) error
}
