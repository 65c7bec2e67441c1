// Package render performs %placeholder% substitution on rule messages.
package render

import (
	"sort"
	"strings"

	"slack-bridge/internal/domain/entity"
)

// NoAccountMessage is the %username% value for guest customers.
const NoAccountMessage = "No account (guest)"

// Fields are the templated parts of a message.
type Fields struct {
	Pretext string
	Title   string
	Text    string
}

// FieldsOf extracts the templated parts of a rule.
func FieldsOf(m entity.MessageFields) Fields {
	return Fields{Pretext: m.Pretext, Title: m.Title, Text: m.Text}
}

// Replacements maps a full token ("%name%") to its value.
// A Replacements value is built per rule and discarded afterwards.
type Replacements map[string]string

// Token wraps name in percent signs unless it already is a token.
func Token(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, "%") && strings.HasSuffix(name, "%") {
		return name
	}
	return "%" + name + "%"
}

// Set stores value under the token for name.
func (r Replacements) Set(name, value string) {
	r[Token(name)] = value
}

// Get returns the value stored for name.
func (r Replacements) Get(name string) (string, bool) {
	v, ok := r[Token(name)]
	return v, ok
}

// Render substitutes every known token in all three fields in a single pass.
// Substituted values are not scanned again and unknown tokens are left as-is.
func Render(f Fields, r Replacements) Fields {
	if len(r) == 0 {
		return f
	}
	rep := r.replacer()
	return Fields{
		Pretext: rep.Replace(f.Pretext),
		Title:   rep.Replace(f.Title),
		Text:    rep.Replace(f.Text),
	}
}

// String renders a single string.
func String(s string, r Replacements) string {
	if len(r) == 0 {
		return s
	}
	return r.replacer().Replace(s)
}

// replacer builds a strings.Replacer with longer tokens first so that the
// outcome does not depend on map iteration order.
func (r Replacements) replacer() *strings.Replacer {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, r[k])
	}
	return strings.NewReplacer(pairs...)
}

// Universal seeds the placeholders available to every trigger.
// user is nil for guests; the payload's guest fields are used instead.
func Universal(user *entity.User, p entity.Payload) Replacements {
	r := make(Replacements, 8)
	if user != nil {
		r.Set("name", user.DisplayName)
		r.Set("username", user.Login)
		r.Set("email", user.Email)
		return r
	}

	r.Set("name", p.GuestName)
	r.Set("username", NoAccountMessage)
	r.Set("email", p.GuestEmail)
	return r
}

// Contributor adds trigger-specific placeholders for an event.
type Contributor func(evt entity.Event, r Replacements)
