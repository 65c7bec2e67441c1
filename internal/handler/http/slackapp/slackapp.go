// Package slackapp serves Slack's interactive-message and slash-command
// callbacks. Requests are verified against the app's verification token,
// routed by callback id or command, and answered through response_url.
package slackapp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"slack-bridge/internal/handler/http/requestid"
	"slack-bridge/internal/handler/http/respond"
	"slack-bridge/internal/infra/slack"
)

// ErrVerification is returned when an inbound request carries a token that
// does not match the configured verification secret.
var ErrVerification = errors.New("slackapp: verification token mismatch")

// ErrHandlerPanicked wraps the value recovered from a panicking handler.
var ErrHandlerPanicked = errors.New("slackapp: handler panicked")

// replyTimeout bounds one response_url push.
const replyTimeout = 10 * time.Second

// ActionValue is one clicked button.
type ActionValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SlackUser identifies who clicked or typed.
type SlackUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Interaction is the payload of an interactive-message callback.
type Interaction struct {
	Token       string        `json:"token"`
	CallbackID  string        `json:"callback_id"`
	Actions     []ActionValue `json:"actions"`
	ResponseURL string        `json:"response_url"`
	User        SlackUser     `json:"user"`
}

// Command is a slash-command invocation.
type Command struct {
	Token       string
	Command     string
	Text        string
	ResponseURL string
	User        SlackUser
}

// InteractionHandler answers an interaction. A nil message sends no reply.
type InteractionHandler func(ctx context.Context, in Interaction) (*slack.Message, error)

// CommandHandler answers a slash command. A nil message sends no reply.
type CommandHandler func(ctx context.Context, cmd Command) (*slack.Message, error)

// Pusher posts a reply to a response_url.
type Pusher interface {
	PushIncomingWebhook(ctx context.Context, responseURL string, msg slack.Message) error
}

// Handler routes verified callbacks. Register handlers before serving.
type Handler struct {
	token  []byte
	pusher Pusher
	logger *slog.Logger

	mu                  sync.RWMutex
	interactions        map[string]InteractionHandler
	commands            map[string]CommandHandler
	interactionFallback InteractionHandler
	commandFallback     CommandHandler

	replies sync.WaitGroup
}

// New returns a Handler verifying against token. An empty token rejects
// every request.
func New(token string, pusher Pusher, logger *slog.Logger) *Handler {
	return &Handler{
		token:               []byte(token),
		pusher:              pusher,
		logger:              logger,
		interactions:        make(map[string]InteractionHandler),
		commands:            make(map[string]CommandHandler),
		interactionFallback: unknownInteraction,
		commandFallback:     unknownCommand,
	}
}

// HandleInteraction routes callbacks with callbackID to fn.
func (h *Handler) HandleInteraction(callbackID string, fn InteractionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interactions[callbackID] = fn
}

// HandleCommand routes the slash command (e.g. "/sales") to fn.
func (h *Handler) HandleCommand(command string, fn CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[command] = fn
}

// InteractionFallback replaces the handler for unrouted callback ids.
func (h *Handler) InteractionFallback(fn InteractionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interactionFallback = fn
}

// CommandFallback replaces the handler for unrouted commands.
func (h *Handler) CommandFallback(fn CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commandFallback = fn
}

// Wait blocks until every pending reply was pushed.
func (h *Handler) Wait() {
	h.replies.Wait()
}

func (h *Handler) verify(token string) error {
	if len(h.token) == 0 || subtle.ConstantTimeCompare(h.token, []byte(token)) != 1 {
		return ErrVerification
	}
	return nil
}

// Interactive serves POST /slack-app/interactive-message/submit.
func (h *Handler) Interactive() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}

		var in Interaction
		if err := json.Unmarshal([]byte(r.PostFormValue("payload")), &in); err != nil {
			respond.Error(w, http.StatusBadRequest,
				respond.NewAppError(http.StatusBadRequest, "invalid payload", err))
			return
		}
		if err := h.verify(in.Token); err != nil {
			h.reject(w, r)
			return
		}

		h.mu.RLock()
		fn, ok := h.interactions[in.CallbackID]
		if !ok {
			fn = h.interactionFallback
		}
		h.mu.RUnlock()

		ctx := context.WithoutCancel(r.Context())
		h.reply(ctx, in.ResponseURL, "interaction", in.CallbackID, func() (*slack.Message, error) {
			return fn(ctx, in)
		})
		w.WriteHeader(http.StatusOK)
	})
}

// Slash serves POST /slack-app/slash-command/submit.
func (h *Handler) Slash() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		if err := r.ParseForm(); err != nil {
			respond.Error(w, http.StatusBadRequest,
				respond.NewAppError(http.StatusBadRequest, "invalid form", err))
			return
		}

		cmd := Command{
			Token:       r.PostForm.Get("token"),
			Command:     r.PostForm.Get("command"),
			Text:        r.PostForm.Get("text"),
			ResponseURL: r.PostForm.Get("response_url"),
			User:        SlackUser{ID: r.PostForm.Get("user_id"), Name: r.PostForm.Get("user_name")},
		}
		if err := h.verify(cmd.Token); err != nil {
			h.reject(w, r)
			return
		}

		h.mu.RLock()
		fn, ok := h.commands[cmd.Command]
		if !ok {
			fn = h.commandFallback
		}
		h.mu.RUnlock()

		ctx := context.WithoutCancel(r.Context())
		h.reply(ctx, cmd.ResponseURL, "command", cmd.Command, func() (*slack.Message, error) {
			return fn(ctx, cmd)
		})
		w.WriteHeader(http.StatusOK)
	})
}

// reject answers 401 without logging anything from the request body.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("slack callback rejected",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.String("path", r.URL.Path))
	respond.Error(w, http.StatusUnauthorized,
		respond.NewAppError(http.StatusUnauthorized, "unauthorized", ErrVerification))
}

// reply runs fn and pushes its message in the background, so Slack gets
// its acknowledgement within the three second window.
func (h *Handler) reply(ctx context.Context, responseURL, kind, route string, fn func() (*slack.Message, error)) {
	h.replies.Add(1)
	go func() {
		defer h.replies.Done()
		logger := h.logger.With(
			slog.String("request_id", requestid.FromContext(ctx)),
			slog.String("kind", kind),
			slog.String("route", route))

		msg, err := call(logger, fn)
		if err != nil {
			logger.Error("slack callback handler failed", slog.String("error", respond.SanitizeError(err)))
			msg = &slack.Message{Text: "Something went wrong handling that request."}
		}
		if msg == nil || responseURL == "" {
			return
		}

		pushCtx, cancel := context.WithTimeout(ctx, replyTimeout)
		defer cancel()
		if err := h.pusher.PushIncomingWebhook(pushCtx, responseURL, *msg); err != nil {
			logger.Warn("response_url push failed", slog.String("error", respond.SanitizeError(err)))
		}
	}()
}

// call runs fn, turning a panic into ErrHandlerPanicked so one broken
// handler cannot take the process down.
func call(logger *slog.Logger, fn func() (*slack.Message, error)) (msg *slack.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in slack callback handler",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			msg, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanicked, rec)
		}
	}()
	return fn()
}

func unknownInteraction(_ context.Context, in Interaction) (*slack.Message, error) {
	return &slack.Message{ResponseType: "ephemeral", Text: "This action is no longer available."}, nil
}

func unknownCommand(_ context.Context, cmd Command) (*slack.Message, error) {
	return &slack.Message{ResponseType: "ephemeral", Text: "Unknown command " + cmd.Command + "."}, nil
}
