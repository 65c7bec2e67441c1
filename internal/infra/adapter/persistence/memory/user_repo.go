package memory

import (
	"context"
	"sync"

	"slack-bridge/internal/domain/entity"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[int64]entity.User
}

func NewUserRepo(users ...entity.User) *UserRepo {
	r := &UserRepo{users: make(map[int64]entity.User, len(users))}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *UserRepo) Put(u entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// Upsert is Put for the repository.UserWriter interface.
func (r *UserRepo) Upsert(_ context.Context, u entity.User) error {
	r.Put(u)
	return nil
}

func (r *UserRepo) Get(_ context.Context, id int64) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
