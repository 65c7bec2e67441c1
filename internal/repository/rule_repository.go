package repository

import (
	"context"

	"slack-bridge/internal/domain/entity"
)

// RuleRepository is the read side of the rule store.
// Rules are returned in store order (ascending id).
type RuleRepository interface {
	FindByTrigger(ctx context.Context, namespace string, trigger entity.Trigger) ([]entity.Rule, error)
	List(ctx context.Context, namespace string) ([]entity.Rule, error)
}

// RuleWriter seeds rules. Only tooling and tests write rules.
type RuleWriter interface {
	Create(ctx context.Context, rule *entity.Rule) error
}
