package notify

import (
	"sync"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/render"
)

// Adapter is a store integration that contributes triggers, filters,
// placeholders and transport overrides at startup.
type Adapter interface {
	// Name identifies the adapter in logs.
	Name() string

	// Triggers returns the triggers the adapter owns.
	Triggers() []entity.Trigger

	// Register installs the adapter's hooks.
	Register(r *Registry)
}

// Registry holds every per-trigger hook. It is built once at startup and
// handed to the Service; nothing in it is process-global.
type Registry struct {
	mu           sync.RWMutex
	evaluator    *filter.Evaluator
	hints        *render.Hints
	contributors map[entity.Trigger][]render.Contributor
	overrides    map[entity.Trigger][]Override
	triggers     map[entity.Trigger]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		evaluator:    filter.NewEvaluator(),
		hints:        render.NewHints(),
		contributors: make(map[entity.Trigger][]render.Contributor),
		overrides:    make(map[entity.Trigger][]Override),
		triggers:     make(map[entity.Trigger]string),
	}
}

// Use registers adapters in order. Hook order within a trigger follows
// the order adapters are passed.
func (r *Registry) Use(adapters ...Adapter) {
	for _, a := range adapters {
		r.mu.Lock()
		for _, t := range a.Triggers() {
			r.triggers[t] = a.Name()
		}
		r.mu.Unlock()
		a.Register(r)
	}
}

// Predicate adds a filter predicate for trigger.
func (r *Registry) Predicate(trigger entity.Trigger, p filter.Predicate) {
	r.evaluator.Register(trigger, p)
}

// Contribute adds a placeholder contributor for trigger.
func (r *Registry) Contribute(trigger entity.Trigger, c render.Contributor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contributors[trigger] = append(r.contributors[trigger], c)
}

// Override adds a transport override for trigger.
func (r *Registry) Override(trigger entity.Trigger, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[trigger] = append(r.overrides[trigger], o)
}

// Hint documents placeholders available for trigger.
func (r *Registry) Hint(trigger entity.Trigger, hints ...render.Hint) {
	r.hints.Add(trigger, hints...)
}

// Evaluator returns the filter evaluator the predicates were registered on.
func (r *Registry) Evaluator() *filter.Evaluator {
	return r.evaluator
}

// Hints returns the placeholder help registry.
func (r *Registry) Hints() *render.Hints {
	return r.hints
}

// Owner returns the adapter name that registered trigger.
func (r *Registry) Owner(trigger entity.Trigger) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.triggers[trigger]
	return name, ok
}

// Replacements builds the placeholder map for evt: universal tokens first,
// then every contributor of the trigger in registration order.
func (r *Registry) Replacements(user *entity.User, evt entity.Event) render.Replacements {
	repl := render.Universal(user, evt.Payload)

	r.mu.RLock()
	contribs := r.contributors[evt.Trigger]
	r.mu.RUnlock()

	for _, c := range contribs {
		c(evt, repl)
	}
	return repl
}

// ApplyOverrides folds every override of the draft's trigger over d.
// Each override receives the previous one's output.
func (r *Registry) ApplyOverrides(d Draft) Draft {
	r.mu.RLock()
	overrides := r.overrides[d.Trigger]
	r.mu.RUnlock()

	for _, o := range overrides {
		d.Message = d.Message.Clone()
		d = o(d)
	}
	return d
}
