package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhook = "https://hooks.slack.com/services/T000/B000/secret"

func testRule() entity.Rule {
	return entity.Rule{
		ID:        7,
		Namespace: entity.DefaultNamespace,
		Trigger:   entity.TriggerPurchaseCompleted,
		Fields: entity.MessageFields{
			WebhookURL: testWebhook,
			Channel:    "sales",
			Username:   "Store",
			Icon:       "moneybag",
			Color:      "#36a64f",
		},
	}
}

func TestNewDraft(t *testing.T) {
	evt := entity.Event{Trigger: entity.TriggerPurchaseCompleted}
	d := NewDraft(testRule(), evt, render.Fields{Pretext: "p", Title: "t", Text: "x"}, Defaults{})

	assert.Equal(t, testWebhook, d.Target)
	assert.Equal(t, "#sales", d.Message.Channel)
	assert.Equal(t, ":moneybag:", d.Message.IconEmoji)
	assert.Empty(t, d.Message.IconURL)
	require.Len(t, d.Message.Attachments, 1)
	assert.Equal(t, slack.Attachment{Pretext: "p", Title: "t", Text: "x", Color: "#36a64f"}, d.Message.Attachments[0])

	t.Run("falls back to namespace webhook", func(t *testing.T) {
		r := testRule()
		r.Fields.WebhookURL = ""
		d := NewDraft(r, evt, render.Fields{}, Defaults{WebhookURL: "https://hooks.slack.com/services/ns"})
		assert.Equal(t, "https://hooks.slack.com/services/ns", d.Target)
	})
}

func TestResolve(t *testing.T) {
	evt := entity.Event{Trigger: entity.TriggerFraudFlagged}

	t.Run("TC-1: webhook host selects the webhook path", func(t *testing.T) {
		d := NewDraft(testRule(), evt, render.Fields{Text: "x"}, Defaults{})
		req, err := Resolve(d, Defaults{})
		require.NoError(t, err)
		assert.Equal(t, KindWebhook, req.Kind)
		assert.Equal(t, testWebhook, req.URL)
		assert.Nil(t, req.Message.AsUser)
		assert.Empty(t, req.Message.Attachments[0].CallbackID)
	})

	t.Run("TC-2: any other target is a Web API method", func(t *testing.T) {
		r := testRule()
		r.Fields.WebhookURL = "chat.postMessage"
		r.Fields.Channel = ""
		r.Fields.Icon = ""
		r.Fields.Username = ""
		d := NewDraft(r, evt, render.Fields{Pretext: "", Title: "Flagged", Text: "x"}, Defaults{})

		req, err := Resolve(d, Defaults{Username: "Bridge", Icon: "https://cdn.example.com/i.png"})
		require.NoError(t, err)
		assert.Equal(t, KindWebAPI, req.Kind)
		assert.Equal(t, "chat.postMessage", req.Method)
		assert.Equal(t, "#general", req.Message.Channel)
		assert.Equal(t, "Bridge", req.Message.Username)
		assert.Equal(t, "https://cdn.example.com/i.png", req.Message.IconURL)
		require.NotNil(t, req.Message.AsUser)
		assert.False(t, *req.Message.AsUser)
		assert.Equal(t, string(entity.TriggerFraudFlagged), req.Message.Attachments[0].CallbackID)
		assert.Equal(t, "Flagged", req.Message.Attachments[0].Fallback, "fallback uses title when pretext is empty")
	})

	t.Run("TC-3: web api channel defaults", func(t *testing.T) {
		d := Draft{Trigger: evt.Trigger, Target: "chat.postMessage", Message: slack.Message{Attachments: []slack.Attachment{{Pretext: "pre"}}}}

		req, err := Resolve(d, Defaults{GeneralChannel: "random"})
		require.NoError(t, err)
		assert.Equal(t, "#random", req.Message.Channel)
		assert.Equal(t, "pre", req.Message.Attachments[0].Fallback)

		req, err = Resolve(d, Defaults{Channel: "@ops", GeneralChannel: "random"})
		require.NoError(t, err)
		assert.Equal(t, "@ops", req.Message.Channel)
	})

	t.Run("TC-4: empty target is a configuration error", func(t *testing.T) {
		_, err := Resolve(Draft{}, Defaults{})
		assert.ErrorIs(t, err, slack.ErrNoDestination)
	})
}

func TestRequest_Destination(t *testing.T) {
	a := Request{Kind: KindWebhook, URL: testWebhook}.Destination()
	b := Request{Kind: KindWebhook, URL: "https://hooks.slack.com/services/other"}.Destination()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "webhook:"))
	assert.NotContains(t, a, "secret")
	assert.Equal(t, "web_api:chat.postMessage", Request{Kind: KindWebAPI, Method: "chat.postMessage"}.Destination())
}

func TestTransport_Send(t *testing.T) {
	t.Run("TC-1: webhook request posts the payload form", func(t *testing.T) {
		var got slack.Message
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			form, _ := url.ParseQuery(string(body))
			_ = json.Unmarshal([]byte(form.Get("payload")), &got)
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		tr := NewTransport(slack.NewClient(slack.Config{Timeout: time.Second}))
		err := tr.Send(context.Background(), Request{
			Kind:    KindWebhook,
			URL:     server.URL + "/hooks.slack.com/services/T/B/X",
			Message: slack.Message{Channel: "#sales", Attachments: []slack.Attachment{{Text: "Sold"}}},
		})

		require.NoError(t, err)
		assert.Equal(t, "#sales", got.Channel)
	})

	t.Run("TC-2: web api request carries the method and token", func(t *testing.T) {
		var gotPath, gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		tr := NewTransport(slack.NewClient(slack.Config{APIBaseURL: server.URL, Token: "xoxb-1", Timeout: time.Second}))
		err := tr.Send(context.Background(), Request{Kind: KindWebAPI, Method: "chat.postMessage"})

		require.NoError(t, err)
		assert.Equal(t, "/chat.postMessage", gotPath)
		assert.Equal(t, "Bearer xoxb-1", gotAuth)
	})

	t.Run("TC-3: web api without a token fails fast", func(t *testing.T) {
		tr := NewTransport(slack.NewClient(slack.Config{Timeout: time.Second}))
		err := tr.Send(context.Background(), Request{Kind: KindWebAPI, Method: "chat.postMessage"})
		assert.True(t, errors.Is(err, slack.ErrNoToken))
	})
}
