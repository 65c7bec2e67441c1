package sqlite

import (
	"context"
	"fmt"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/db"
)

type UserRepo struct{ db db.Querier }

func NewUserRepo(q db.Querier) *UserRepo {
	return &UserRepo{db: q}
}

func (repo *UserRepo) Get(ctx context.Context, id int64) (*entity.User, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT id, display_name, login, email FROM users WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var u entity.User
	if err := rows.Scan(&u.ID, &u.DisplayName, &u.Login, &u.Email); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &u, nil
}

// Upsert stores u, replacing any existing row with the same id.
func (repo *UserRepo) Upsert(ctx context.Context, u entity.User) error {
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO users (id, display_name, login, email) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, login = excluded.login, email = excluded.email`,
		u.ID, u.DisplayName, u.Login, u.Email)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
