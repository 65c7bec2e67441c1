// Package rulefile loads notification rules from YAML files.
//
// A rule file groups rules by namespace:
//
//	namespaces:
//	  rbm:
//	    - title: Sales
//	      trigger: purchase_completed
//	      channel: "#sales"
//	      message_text: "%cart% bought by %name%"
//	      filters:
//	        download: ["42"]
package rulefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/adapter/persistence/memory"
)

type document struct {
	Namespaces map[string][]fileRule `yaml:"namespaces"`
}

type fileRule struct {
	ID      int64                `yaml:"id"`
	Title   string               `yaml:"title"`
	Trigger entity.Trigger       `yaml:"trigger"`
	Fields  entity.MessageFields `yaml:",inline"`
	Filters entity.FilterFields  `yaml:"filters"`
}

// Parse decodes one rule document. Rules failing entity.ValidateRule are
// dropped with a warning; the rest are returned grouped by namespace.
func Parse(data []byte, logger *slog.Logger) (map[string][]entity.Rule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}

	out := make(map[string][]entity.Rule, len(doc.Namespaces))
	for ns, rules := range doc.Namespaces {
		kept := make([]entity.Rule, 0, len(rules))
		for i, fr := range rules {
			rule := entity.Rule{
				ID:        fr.ID,
				Namespace: ns,
				Title:     fr.Title,
				Trigger:   fr.Trigger,
				Fields:    fr.Fields,
				Filters:   fr.Filters,
			}
			if err := entity.ValidateRule(rule); err != nil {
				logger.Warn("skipping invalid rule",
					slog.String("namespace", ns),
					slog.Int("index", i),
					slog.String("title", fr.Title),
					slog.Any("error", err))
				continue
			}
			kept = append(kept, rule)
		}
		out[ns] = kept
	}
	return out, nil
}

// Load reads path, which is either a YAML file or a directory of them.
// Files in a directory are read in name order and their namespaces merged.
func Load(path string, logger *slog.Logger) (map[string][]entity.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	if !info.IsDir() {
		return loadFile(path, logger)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := make(map[string][]entity.Rule)
	for _, name := range names {
		rules, err := loadFile(filepath.Join(path, name), logger)
		if err != nil {
			return nil, fmt.Errorf("loading rule file %s: %w", name, err)
		}
		for ns, list := range rules {
			merged[ns] = append(merged[ns], list...)
		}
	}
	return merged, nil
}

func loadFile(path string, logger *slog.Logger) (map[string][]entity.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	return Parse(data, logger)
}

// Store serves rules loaded from a file through the rule repository
// interface. Reload re-reads the file; a failed reload keeps the previous
// rules.
type Store struct {
	*memory.RuleRepo

	path   string
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewStore returns a Store for path. Call Reload before first use.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		RuleRepo: memory.NewRuleRepo(),
		path:     path,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Reload re-reads the rule file. Namespaces that disappeared from the file
// are emptied.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.path == "" {
		return errors.New("rule file path is empty")
	}

	rules, err := Load(s.path, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for ns := range s.seen {
		if _, ok := rules[ns]; !ok {
			rules[ns] = nil
		}
	}
	s.seen = make(map[string]struct{}, len(rules))
	count := 0
	for ns, list := range rules {
		s.seen[ns] = struct{}{}
		count += len(list)
	}
	s.mu.Unlock()

	s.Replace(rules)
	s.logger.Info("rules reloaded",
		slog.String("path", s.path),
		slog.Int("namespaces", len(rules)),
		slog.Int("rules", count))
	return nil
}
