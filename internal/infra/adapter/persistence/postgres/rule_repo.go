package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/db"
)

type RuleRepo struct{ db db.Querier }

func NewRuleRepo(q db.Querier) *RuleRepo {
	return &RuleRepo{db: q}
}

// scanRules folds (id, title, key, value) rows ordered by id into rules.
func scanRules(rows *sql.Rows, namespace string) ([]entity.Rule, error) {
	rules := make([]entity.Rule, 0, 8)
	var (
		curID = int64(-1)
		title string
		meta  map[string]string
	)
	flush := func() {
		if curID >= 0 {
			rules = append(rules, entity.RuleFromMeta(curID, namespace, title, meta))
		}
	}

	for rows.Next() {
		var id int64
		var t, key, value string
		if err := rows.Scan(&id, &t, &key, &value); err != nil {
			return nil, err
		}
		if id != curID {
			flush()
			curID, title, meta = id, t, make(map[string]string)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return rules, nil
}

func (repo *RuleRepo) FindByTrigger(ctx context.Context, namespace string, trigger entity.Trigger) ([]entity.Rule, error) {
	const query = `
SELECT f.id, f.title, m.meta_key, m.meta_value
FROM feeds f
JOIN feed_meta m ON m.feed_id = f.id
WHERE f.namespace = $1
  AND f.id IN (
    SELECT feed_id FROM feed_meta WHERE meta_key = $2 AND meta_value = $3
  )
ORDER BY f.id ASC, m.meta_key ASC`
	rows, err := repo.db.QueryContext(ctx, query,
		namespace, entity.FieldKey(namespace, entity.FieldTrigger), string(trigger))
	if err != nil {
		return nil, fmt.Errorf("FindByTrigger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rules, err := scanRules(rows, namespace)
	if err != nil {
		return nil, fmt.Errorf("FindByTrigger: %w", err)
	}
	return rules, nil
}

func (repo *RuleRepo) List(ctx context.Context, namespace string) ([]entity.Rule, error) {
	const query = `
SELECT f.id, f.title, m.meta_key, m.meta_value
FROM feeds f
JOIN feed_meta m ON m.feed_id = f.id
WHERE f.namespace = $1
ORDER BY f.id ASC, m.meta_key ASC`
	rows, err := repo.db.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rules, err := scanRules(rows, namespace)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return rules, nil
}

// Create stores rule and sets its ID. Writes are not transactional; this is
// only used for seeding.
func (repo *RuleRepo) Create(ctx context.Context, rule *entity.Rule) error {
	if rule.Namespace == "" {
		rule.Namespace = entity.DefaultNamespace
	}

	rows, err := repo.db.QueryContext(ctx,
		`INSERT INTO feeds (namespace, title) VALUES ($1, $2) RETURNING id`,
		rule.Namespace, rule.Title)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		if err == nil {
			err = errors.New("no id returned")
		}
		return fmt.Errorf("Create: %w", err)
	}
	if err := rows.Scan(&rule.ID); err != nil {
		_ = rows.Close()
		return fmt.Errorf("Create: %w", err)
	}
	_ = rows.Close()

	meta := rule.Meta()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := repo.db.ExecContext(ctx,
			`INSERT INTO feed_meta (feed_id, meta_key, meta_value) VALUES ($1, $2, $3)`,
			rule.ID, k, meta[k]); err != nil {
			return fmt.Errorf("Create: meta %s: %w", k, err)
		}
	}
	return nil
}
