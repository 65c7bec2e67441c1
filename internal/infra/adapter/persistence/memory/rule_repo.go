// Package memory provides in-process repositories backed by maps. They
// serve file-sourced rules and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"slack-bridge/internal/domain/entity"
)

type RuleRepo struct {
	mu     sync.RWMutex
	nextID int64
	rules  map[string][]entity.Rule
}

func NewRuleRepo() *RuleRepo {
	return &RuleRepo{rules: make(map[string][]entity.Rule)}
}

// Replace swaps the rules of every namespace present in byNamespace.
// Rules without an ID are assigned one.
func (r *RuleRepo) Replace(byNamespace map[string][]entity.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ns, rules := range byNamespace {
		cp := make([]entity.Rule, len(rules))
		copy(cp, rules)
		for i := range cp {
			cp[i].Namespace = ns
			if cp[i].ID == 0 {
				r.nextID++
				cp[i].ID = r.nextID
			} else if cp[i].ID > r.nextID {
				r.nextID = cp[i].ID
			}
		}
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
		r.rules[ns] = cp
	}
}

func (r *RuleRepo) Create(_ context.Context, rule *entity.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.Namespace == "" {
		rule.Namespace = entity.DefaultNamespace
	}
	r.nextID++
	rule.ID = r.nextID
	r.rules[rule.Namespace] = append(r.rules[rule.Namespace], *rule)
	return nil
}

func (r *RuleRepo) FindByTrigger(_ context.Context, namespace string, trigger entity.Trigger) ([]entity.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Rule, 0)
	for _, rule := range r.rules[namespace] {
		if rule.Trigger == trigger {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *RuleRepo) List(_ context.Context, namespace string) ([]entity.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Rule, len(r.rules[namespace]))
	copy(out, r.rules[namespace])
	return out, nil
}
