package render

import (
	"sort"
	"sync"

	"slack-bridge/internal/domain/entity"
)

// Hint documents a placeholder for configuration help text.
type Hint struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

// universalHints apply to every trigger.
var universalHints = []Hint{
	{Token: "%name%", Description: "The customer's display name"},
	{Token: "%username%", Description: "The customer's login, or a note for guests"},
	{Token: "%email%", Description: "The customer's email address"},
}

// Hints is a descriptive registry of placeholders per trigger.
// Rendering does not consult it.
type Hints struct {
	mu    sync.RWMutex
	hints map[entity.Trigger][]Hint
}

// NewHints returns an empty registry.
func NewHints() *Hints {
	return &Hints{hints: make(map[entity.Trigger][]Hint)}
}

// Add documents tokens for trigger. Tokens are normalized with Token.
func (h *Hints) Add(trigger entity.Trigger, hints ...Hint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hint := range hints {
		hint.Token = Token(hint.Token)
		h.hints[trigger] = append(h.hints[trigger], hint)
	}
}

// For returns the universal hints followed by the hints of trigger.
func (h *Hints) For(trigger entity.Trigger) []Hint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Hint, 0, len(universalHints)+len(h.hints[trigger]))
	out = append(out, universalHints...)
	return append(out, h.hints[trigger]...)
}

// Triggers returns every trigger with registered hints, sorted.
func (h *Hints) Triggers() []entity.Trigger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]entity.Trigger, 0, len(h.hints))
	for t := range h.hints {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
