package postgres

import (
	"context"
	"fmt"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/db"
)

type DeliveryRepo struct{ db db.Querier }

func NewDeliveryRepo(q db.Querier) *DeliveryRepo {
	return &DeliveryRepo{db: q}
}

func (repo *DeliveryRepo) Create(ctx context.Context, d *entity.Delivery) error {
	const query = `
INSERT INTO deliveries
    (id, event_id, rule_id, namespace, trigger, status, reason, kind, attempts, error, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := repo.db.ExecContext(ctx, query,
		d.ID, d.EventID, d.RuleID, d.Namespace, string(d.Trigger), string(d.Status),
		d.Reason, d.Kind, d.Attempts, d.Error, d.Duration.Milliseconds(), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Delivery, error) {
	const query = `
SELECT id, event_id, rule_id, namespace, trigger, status, reason, kind, attempts, error, duration_ms, created_at
FROM deliveries
ORDER BY created_at DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Delivery, 0, limit)
	for rows.Next() {
		var d entity.Delivery
		var trigger, status string
		var durationMS int64
		if err := rows.Scan(&d.ID, &d.EventID, &d.RuleID, &d.Namespace, &trigger, &status,
			&d.Reason, &d.Kind, &d.Attempts, &d.Error, &durationMS, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		d.Trigger = entity.Trigger(trigger)
		d.Status = entity.DeliveryStatus(status)
		d.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &d)
	}
	return out, rows.Err()
}
