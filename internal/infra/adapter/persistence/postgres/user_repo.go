package postgres

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
	const query = `
SELECT id, display_name, login, email
FROM users
WHERE id = $1
LIMIT 1`
	rows, err := repo.db.QueryContext(ctx, query, id)
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
	const query = `
INSERT INTO users (id, display_name, login, email)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET display_name = EXCLUDED.display_name,
    login = EXCLUDED.login,
    email = EXCLUDED.email`
	if _, err := repo.db.ExecContext(ctx, query, u.ID, u.DisplayName, u.Login, u.Email); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
