package slack

import (
	"regexp"
	"strings"
)

// webhookHostMarker identifies a legacy incoming-webhook destination.
const webhookHostMarker = "hooks.slack.com"

// nonWordChars matches everything an emoji shortcode must not contain.
var nonWordChars = regexp.MustCompile(`\W`)

// Message is the body shared by incoming webhooks, chat.postMessage and
// response_url replies.
type Message struct {
	Channel         string       `json:"channel,omitempty"`
	Username        string       `json:"username,omitempty"`
	IconEmoji       string       `json:"icon_emoji,omitempty"`
	IconURL         string       `json:"icon_url,omitempty"`
	Text            string       `json:"text,omitempty"`
	AsUser          *bool        `json:"as_user,omitempty"`
	ResponseType    string       `json:"response_type,omitempty"`
	ReplaceOriginal *bool        `json:"replace_original,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// Attachment is a legacy message attachment.
type Attachment struct {
	Fallback   string   `json:"fallback,omitempty"`
	Pretext    string   `json:"pretext,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text,omitempty"`
	Color      string   `json:"color,omitempty"`
	CallbackID string   `json:"callback_id,omitempty"`
	Actions    []Action `json:"actions,omitempty"`
}

// Action is an interactive button on an attachment.
type Action struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Style string `json:"style,omitempty"`
}

// Button returns a button action.
func Button(name, text, value, style string) Action {
	return Action{Name: name, Text: text, Type: "button", Value: value, Style: style}
}

// IsWebhookURL reports whether target is a legacy incoming-webhook URL.
func IsWebhookURL(target string) bool {
	return strings.Contains(target, webhookHostMarker)
}

// IsIconURL reports whether icon should be sent as icon_url.
func IsIconURL(icon string) bool {
	return strings.Contains(icon, "http")
}

// FormatIcon normalizes a rule icon. URLs are returned unchanged; anything
// else is reduced to word characters and wrapped in colons. Empty stays empty.
func FormatIcon(icon string) string {
	icon = strings.TrimSpace(icon)
	if icon == "" || IsIconURL(icon) {
		return icon
	}
	name := nonWordChars.ReplaceAllString(icon, "")
	if name == "" {
		return ""
	}
	return ":" + name + ":"
}

// FormatChannel prefixes a bare channel name with '#'. Names already
// starting with '#' or '@', and the empty string, are returned unchanged.
func FormatChannel(channel string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" || strings.HasPrefix(channel, "#") || strings.HasPrefix(channel, "@") {
		return channel
	}
	return "#" + channel
}

// SetIcon routes icon to icon_url or icon_emoji.
func (m *Message) SetIcon(icon string) {
	icon = FormatIcon(icon)
	m.IconEmoji, m.IconURL = "", ""
	if icon == "" {
		return
	}
	if IsIconURL(icon) {
		m.IconURL = icon
		return
	}
	m.IconEmoji = icon
}

// Icon returns whichever of icon_url and icon_emoji is set.
func (m Message) Icon() string {
	if m.IconURL != "" {
		return m.IconURL
	}
	return m.IconEmoji
}

// Clone returns a deep copy so overrides cannot alias each other's slices.
func (m Message) Clone() Message {
	out := m
	if m.AsUser != nil {
		v := *m.AsUser
		out.AsUser = &v
	}
	if m.ReplaceOriginal != nil {
		v := *m.ReplaceOriginal
		out.ReplaceOriginal = &v
	}
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			if a.Actions != nil {
				a.Actions = append([]Action(nil), a.Actions...)
			}
			out.Attachments[i] = a
		}
	}
	return out
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
