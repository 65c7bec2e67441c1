package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/db"
)

type RuleRepo struct{ db db.Querier }

func NewRuleRepo(q db.Querier) *RuleRepo {
	return &RuleRepo{db: q}
}

func scanRules(rows *sql.Rows, namespace string) ([]entity.Rule, error) {
	rules := make([]entity.Rule, 0, 8)
	var (
		curID = int64(-1)
		title string
		meta  map[string]string
	)
	for rows.Next() {
		var id int64
		var t, key, value string
		if err := rows.Scan(&id, &t, &key, &value); err != nil {
			return nil, err
		}
		if id != curID {
			if curID >= 0 {
				rules = append(rules, entity.RuleFromMeta(curID, namespace, title, meta))
			}
			curID, title, meta = id, t, make(map[string]string)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if curID >= 0 {
		rules = append(rules, entity.RuleFromMeta(curID, namespace, title, meta))
	}
	return rules, nil
}

func (repo *RuleRepo) FindByTrigger(ctx context.Context, namespace string, trigger entity.Trigger) ([]entity.Rule, error) {
	const query = `
SELECT f.id, f.title, m.meta_key, m.meta_value
FROM feeds f
JOIN feed_meta m ON m.feed_id = f.id
WHERE f.namespace = ?
  AND f.id IN (
    SELECT feed_id FROM feed_meta WHERE meta_key = ? AND meta_value = ?
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
WHERE f.namespace = ?
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

func (repo *RuleRepo) Create(ctx context.Context, rule *entity.Rule) error {
	if rule.Namespace == "" {
		rule.Namespace = entity.DefaultNamespace
	}

	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO feeds (namespace, title) VALUES (?, ?)`, rule.Namespace, rule.Title)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	rule.ID = id

	meta := rule.Meta()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := repo.db.ExecContext(ctx,
			`INSERT INTO feed_meta (feed_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			rule.ID, k, meta[k]); err != nil {
			return fmt.Errorf("Create: meta %s: %w", k, err)
		}
	}
	return nil
}
