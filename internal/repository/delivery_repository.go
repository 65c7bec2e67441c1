package repository

import (
	"context"

	"slack-bridge/internal/domain/entity"
)

type DeliveryRepository interface {
	Create(ctx context.Context, d *entity.Delivery) error
	ListRecent(ctx context.Context, limit int) ([]*entity.Delivery, error)
}
