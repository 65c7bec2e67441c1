package entity

import (
	"sort"
	"strings"
)

// DefaultNamespace is the bundled rule namespace.
const DefaultNamespace = "rbm"

// Field ids of the persisted rule schema. Each one is stored under
// FieldKey(namespace, id).
const (
	FieldTrigger         = "trigger"
	FieldWebhookURL      = "webhook_url"
	FieldChannel         = "channel"
	FieldUsername        = "username"
	FieldIcon            = "icon"
	FieldColor           = "color"
	FieldPretext         = "message_pretext"
	FieldTitle           = "message_title"
	FieldText            = "message_text"
	FieldDownload        = "download"
	FieldExcludeDownload = "exclude_download"
	FieldDiscountCode    = "discount_code"
)

// Rule is a user-configured notification feed: a trigger bound to message
// content and filter conditions. Rules are read-only for the bridge.
type Rule struct {
	ID        int64
	Namespace string
	Title     string
	Trigger   Trigger
	Fields    MessageFields
	Filters   FilterFields
}

// MessageFields are the templated message settings of a rule.
type MessageFields struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	Icon       string `yaml:"icon"`
	Color      string `yaml:"color"`
	Pretext    string `yaml:"message_pretext"`
	Title      string `yaml:"message_title"`
	Text       string `yaml:"message_text"`
}

// FilterFields scope a rule to a subset of events.
type FilterFields struct {
	// Download holds product selectors ("42", "42-3") or the sentinel "all".
	Download []string `yaml:"download"`

	// ExcludeDownload holds selectors that must not match.
	ExcludeDownload []string `yaml:"exclude_download"`

	// DiscountCode is a case-sensitive code or "all".
	DiscountCode string `yaml:"discount_code"`

	// Extra carries adapter-defined filter fields.
	Extra map[string]string `yaml:"extra"`
}

// Eligible reports whether the rule can ever be dispatched.
func (r Rule) Eligible() bool {
	return strings.TrimSpace(string(r.Trigger)) != ""
}

// Extra returns the adapter-defined filter field named key.
func (r Rule) Extra(key string) string {
	if r.Filters.Extra == nil {
		return ""
	}
	return r.Filters.Extra[key]
}

// FieldKey returns the persisted key of a rule field: {namespace}_feed_{field_id}.
func FieldKey(namespace, fieldID string) string {
	return namespace + "_feed_" + fieldID
}

// Meta flattens the rule into its persisted key/value layout.
// Empty values are omitted.
func (r Rule) Meta() map[string]string {
	ns := r.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	values := map[string]string{
		FieldTrigger:         string(r.Trigger),
		FieldWebhookURL:      r.Fields.WebhookURL,
		FieldChannel:         r.Fields.Channel,
		FieldUsername:        r.Fields.Username,
		FieldIcon:            r.Fields.Icon,
		FieldColor:           r.Fields.Color,
		FieldPretext:         r.Fields.Pretext,
		FieldTitle:           r.Fields.Title,
		FieldText:            r.Fields.Text,
		FieldDownload:        strings.Join(r.Filters.Download, ","),
		FieldExcludeDownload: strings.Join(r.Filters.ExcludeDownload, ","),
		FieldDiscountCode:    r.Filters.DiscountCode,
	}
	for k, v := range r.Filters.Extra {
		values[k] = v
	}

	meta := make(map[string]string, len(values))
	for id, v := range values {
		if v == "" {
			continue
		}
		meta[FieldKey(ns, id)] = v
	}
	return meta
}

// RuleFromMeta rebuilds a rule from its persisted layout. Keys that do not
// carry the namespace prefix are ignored; unknown field ids land in Extra.
func RuleFromMeta(id int64, namespace, title string, meta map[string]string) Rule {
	r := Rule{ID: id, Namespace: namespace, Title: title}
	prefix := FieldKey(namespace, "")

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v := meta[key]
		switch field := strings.TrimPrefix(key, prefix); field {
		case FieldTrigger:
			r.Trigger = Trigger(v)
		case FieldWebhookURL:
			r.Fields.WebhookURL = v
		case FieldChannel:
			r.Fields.Channel = v
		case FieldUsername:
			r.Fields.Username = v
		case FieldIcon:
			r.Fields.Icon = v
		case FieldColor:
			r.Fields.Color = v
		case FieldPretext:
			r.Fields.Pretext = v
		case FieldTitle:
			r.Fields.Title = v
		case FieldText:
			r.Fields.Text = v
		case FieldDownload:
			r.Filters.Download = SplitSelectors(v)
		case FieldExcludeDownload:
			r.Filters.ExcludeDownload = SplitSelectors(v)
		case FieldDiscountCode:
			r.Filters.DiscountCode = v
		default:
			if r.Filters.Extra == nil {
				r.Filters.Extra = make(map[string]string)
			}
			r.Filters.Extra[field] = v
		}
	}
	return r
}

// SplitSelectors splits a comma-joined selector list, dropping blanks.
func SplitSelectors(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// User is the account that performed a store action.
type User struct {
	ID          int64
	DisplayName string
	Login       string
	Email       string
}
