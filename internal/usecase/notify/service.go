package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/handler/http/requestid"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/observability/tracing"
	"slack-bridge/internal/repository"
	"slack-bridge/internal/resilience/circuitbreaker"
	"slack-bridge/internal/resilience/retry"
	"slack-bridge/internal/usecase/render"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service routes store events to Slack.
type Service interface {
	// Notify queues evt for background dispatch and returns immediately.
	//
	// It always returns nil: a full queue or a stopped service drops the
	// event with a metric and a log line, never an error to the emitter.
	Notify(ctx context.Context, evt entity.Event) error

	// Dispatch processes evt inline and reports what happened to every
	// matching rule. Failures of one rule never stop the next.
	Dispatch(ctx context.Context, evt entity.Event) Report

	// Health returns the circuit breaker state of every destination seen so far.
	Health() []DestinationHealth

	// AuthWarnings returns namespaces whose Web API token was rejected.
	AuthWarnings() []AuthWarning

	// Shutdown stops the workers, waiting for in-flight events to finish
	// or ctx to expire. Events still queued are dropped.
	Shutdown(ctx context.Context) error
}

// Config holds notification service settings.
type Config struct {
	// Namespaces are queried in order for every event.
	Namespaces []string

	// Defaults holds per-namespace fallbacks for rule fields.
	Defaults map[string]Defaults

	// Workers is the number of background dispatch goroutines.
	Workers int

	// QueueSize bounds the number of events waiting for a worker.
	QueueSize int

	// EnqueueTimeout is how long Notify waits for queue space before dropping.
	EnqueueTimeout time.Duration

	// RuleTimeout bounds one rule's send including retries.
	RuleTimeout time.Duration

	Retry   retry.Config
	Breaker func(name string) circuitbreaker.Config
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Namespaces:     []string{entity.DefaultNamespace},
		Defaults:       map[string]Defaults{},
		Workers:        4,
		QueueSize:      256,
		EnqueueTimeout: 5 * time.Second,
		RuleTimeout:    30 * time.Second,
		Retry:          retry.SlackDeliveryConfig(),
		Breaker:        circuitbreaker.SlackDestinationConfig,
	}
}

// Deps are the collaborators of the service.
type Deps struct {
	Rules    repository.RuleRepository
	Users    repository.UserRepository // optional; every actor is a guest without it
	Registry *Registry
	Sender   Sender
	Recorder DeliveryRecorder // optional
	Tracer   trace.Tracer     // optional
}

// Outcome is the result of one rule for one event.
type Outcome struct {
	RuleID    int64
	Namespace string
	Status    entity.DeliveryStatus
	Reason    string
	Err       error
	Kind      Kind
	Attempts  int
	Duration  time.Duration
}

// Report lists the outcomes of one dispatched event in rule order.
type Report struct {
	EventID  string
	Trigger  entity.Trigger
	Outcomes []Outcome
}

// Count returns the number of outcomes with status.
func (r Report) Count(status entity.DeliveryStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// DestinationHealth represents the breaker state of one destination.
type DestinationHealth struct {
	Name               string
	State              string
	CircuitBreakerOpen bool
}

// AuthWarning is an admin-facing notice that a namespace's token is unusable.
type AuthWarning struct {
	Namespace string
	Method    string
	Error     string
	At        time.Time
}

type job struct {
	requestID string
	evt       entity.Event
}

// service is the concrete implementation of Service interface.
type service struct {
	cfg      Config
	rules    repository.RuleRepository
	users    repository.UserRepository
	registry *Registry
	sender   Sender
	recorder DeliveryRecorder
	tracer   trace.Tracer
	breakers *circuitbreaker.Group

	queue chan job
	wg    sync.WaitGroup

	baseCtx    context.Context
	baseCancel context.CancelFunc
	stopping   chan struct{}
	stopOnce   sync.Once

	authMu       sync.RWMutex
	authWarnings map[string]AuthWarning
}

// NewService creates the service and starts its workers.
func NewService(cfg Config, deps Deps) Service {
	def := DefaultConfig()
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = def.Namespaces
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = def.EnqueueTimeout
	}
	if cfg.RuleTimeout <= 0 {
		cfg.RuleTimeout = def.RuleTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Breaker == nil {
		cfg.Breaker = def.Breaker
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.GetTracer()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &service{
		cfg:          cfg,
		rules:        deps.Rules,
		users:        deps.Users,
		registry:     deps.Registry,
		sender:       deps.Sender,
		recorder:     deps.Recorder,
		tracer:       deps.Tracer,
		queue:        make(chan job, cfg.QueueSize),
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
		stopping:     make(chan struct{}),
		authWarnings: make(map[string]AuthWarning),
	}
	s.breakers = circuitbreaker.NewGroup(s.breakerConfig)

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *service) breakerConfig(name string) circuitbreaker.Config {
	cfg := s.cfg.Breaker(name)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || !slack.IsRetryable(err)
	}
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			kind, _, _ := strings.Cut(name, ":")
			RecordCircuitBreakerOpen(kind)
		}
	}
	return cfg
}

// Notify implements Service.Notify.
func (s *service) Notify(ctx context.Context, evt entity.Event) error {
	// The caller's context ends with its request; only the id is carried over.
	requestID := requestid.FromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	j := job{requestID: requestID, evt: evt}

	select {
	case <-s.stopping:
		s.drop(j, "shutdown", ErrServiceClosed)
		return nil
	default:
	}

	timer := time.NewTimer(s.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case s.queue <- j:
		SetQueueDepth(len(s.queue))
	case <-s.stopping:
		s.drop(j, "shutdown", ErrServiceClosed)
	case <-timer.C:
		s.drop(j, "queue_full", ErrNotificationDropped)
	}
	return nil
}

func (s *service) drop(j job, reason string, err error) {
	RecordDropped(reason)
	RecordOutcome(string(j.evt.Trigger), string(entity.DeliveryDropped))
	slog.Warn("notification dropped",
		slog.String("request_id", j.requestID),
		slog.String("trigger", string(j.evt.Trigger)),
		slog.String("reason", reason))
	s.record(s.baseCtx, entity.Delivery{
		ID:        uuid.New().String(),
		Trigger:   j.evt.Trigger,
		Status:    entity.DeliveryDropped,
		Reason:    reason,
		Error:     err.Error(),
		CreatedAt: time.Now(),
	})
}

func (s *service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopping:
			return
		case j := <-s.queue:
			SetQueueDepth(len(s.queue))
			IncrementActiveWorkers()
			s.Dispatch(requestid.WithRequestID(s.baseCtx, j.requestID), j.evt)
			DecrementActiveWorkers()
		}
	}
}

// Dispatch implements Service.Dispatch.
func (s *service) Dispatch(ctx context.Context, evt entity.Event) Report {
	report := Report{EventID: uuid.New().String(), Trigger: evt.Trigger}
	requestID := requestid.FromContext(ctx)
	RecordEvent(string(evt.Trigger))

	if strings.TrimSpace(string(evt.Trigger)) == "" {
		slog.Warn("event without trigger ignored", slog.String("request_id", requestID))
		return report
	}

	user := s.lookupUser(ctx, requestID, evt.Payload)

	for _, ns := range s.cfg.Namespaces {
		rules, err := s.findRules(ctx, ns, evt.Trigger)
		if err != nil {
			slog.Error("failed to load rules",
				slog.String("request_id", requestID),
				slog.String("namespace", ns),
				slog.String("trigger", string(evt.Trigger)),
				slog.Any("error", err))
			continue
		}

		for _, rule := range rules {
			out := s.processRule(ctx, ns, rule, user, evt)
			report.Outcomes = append(report.Outcomes, out)
			s.finish(ctx, requestID, report.EventID, evt, out)
		}
	}

	return report
}

// findRules loads the rules of one namespace. A panicking repository is
// reported as an error so the remaining namespaces still run.
func (s *service) findRules(ctx context.Context, ns string, trigger entity.Trigger) (rules []entity.Rule, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while loading rules",
				slog.String("namespace", ns),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			rules, err = nil, fmt.Errorf("%w: %v", ErrLookupPanicked, r)
		}
	}()
	return s.rules.FindByTrigger(ctx, ns, trigger)
}

// lookupUser resolves the acting account. A profile carried on the event
// wins and is written back to directories that accept it; otherwise the
// directory is asked. Any failure renders the actor as a guest.
func (s *service) lookupUser(ctx context.Context, requestID string, p entity.Payload) (user *entity.User) {
	if p.UserID <= 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in user lookup",
				slog.String("request_id", requestID),
				slog.Int64("user_id", p.UserID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			user = nil
		}
	}()

	if p.Actor != nil {
		actor := *p.Actor
		actor.ID = p.UserID
		s.rememberUser(ctx, requestID, actor)
		return &actor
	}
	if s.users == nil {
		return nil
	}
	u, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		slog.Warn("user lookup failed, rendering as guest",
			slog.String("request_id", requestID),
			slog.Int64("user_id", p.UserID),
			slog.Any("error", err))
		return nil
	}
	return u
}

func (s *service) rememberUser(ctx context.Context, requestID string, u entity.User) {
	w, ok := s.users.(repository.UserWriter)
	if !ok {
		return
	}
	if err := w.Upsert(ctx, u); err != nil {
		slog.Warn("failed to store user profile",
			slog.String("request_id", requestID),
			slog.Int64("user_id", u.ID),
			slog.Any("error", err))
	}
}

// processRule runs one rule end to end. Panics are recovered here so the
// next rule is always attempted.
func (s *service) processRule(ctx context.Context, ns string, rule entity.Rule, user *entity.User, evt entity.Event) (out Outcome) {
	start := time.Now()
	out = Outcome{RuleID: rule.ID, Namespace: ns}

	ctx, span := s.tracer.Start(ctx, "notify.rule",
		trace.WithAttributes(
			attribute.Int64("rule.id", rule.ID),
			attribute.String("rule.namespace", ns),
			attribute.String("event.trigger", string(evt.Trigger)),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing rule",
				slog.Int64("rule_id", rule.ID),
				slog.String("namespace", ns),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			out.Status = entity.DeliveryFailed
			out.Reason = "panic"
			out.Err = fmt.Errorf("%w: %v", ErrRulePanicked, r)
		}
		out.Duration = time.Since(start)
		span.SetAttributes(attribute.String("notify.status", string(out.Status)))
		if out.Status == entity.DeliveryFailed {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Reason)
		}
	}()

	if rule.Namespace == "" {
		rule.Namespace = ns
	}
	if !rule.Eligible() {
		out.Status = entity.DeliverySkipped
		out.Reason = "no_trigger"
		return out
	}

	if d := s.registry.Evaluator().Evaluate(rule, evt); d.Bail {
		out.Reason = d.Reason
		out.Status = entity.DeliveryBailed
		if d.Err != nil {
			out.Status = entity.DeliverySkipped
			out.Err = d.Err
		}
		return out
	}

	repl := s.registry.Replacements(user, evt)
	fields := render.Render(render.FieldsOf(rule.Fields), repl)

	defaults := s.cfg.Defaults[ns]
	draft := s.registry.ApplyOverrides(NewDraft(rule, evt, fields, defaults))

	req, err := Resolve(draft, defaults)
	if err != nil {
		out.Status = entity.DeliverySkipped
		out.Reason = "no_destination"
		out.Err = err
		return out
	}
	out.Kind = req.Kind
	span.SetAttributes(attribute.String("notify.kind", string(req.Kind)))

	out.Attempts, err = s.send(ctx, req)
	if err != nil {
		out.Status = entity.DeliveryFailed
		out.Reason = failureReason(err)
		out.Err = err
		if slack.IsAuthError(err) {
			s.warnAuth(ns, req.Method, err)
		}
		return out
	}

	out.Status = entity.DeliverySent
	return out
}

// send performs req under the rule timeout, retrying transient failures
// through the destination's circuit breaker.
func (s *service) send(ctx context.Context, req Request) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RuleTimeout)
	defer cancel()

	cb := s.breakers.Get(req.Destination())

	cfg := s.cfg.Retry
	cfg.Retryable = func(err error) bool {
		return !circuitbreaker.IsRejection(err) && slack.IsRetryable(err)
	}
	cfg.DelayHint = slack.RetryAfter

	attempts := 0
	start := time.Now()
	err := retry.WithBackoff(ctx, cfg, func() error {
		attempts++
		return cb.Run(func() error {
			return s.sender.Send(ctx, req)
		})
	})
	RecordSend(string(req.Kind), time.Since(start), attempts)
	return attempts, err
}

func failureReason(err error) string {
	var rateLimitErr *slack.RateLimitError
	var clientErr *slack.ClientError
	var serverErr *slack.ServerError
	var apiErr *slack.APIError
	switch {
	case slack.IsAuthError(err):
		return "auth"
	case errors.Is(err, slack.ErrNoToken):
		return "no_token"
	case circuitbreaker.IsRejection(err):
		return "circuit_open"
	case errors.As(err, &rateLimitErr):
		return "rate_limited"
	case errors.As(err, &clientErr):
		return "client_error"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrRulePanicked):
		return "panic"
	default:
		return "transport"
	}
}

func (s *service) finish(ctx context.Context, requestID, eventID string, evt entity.Event, out Outcome) {
	RecordOutcome(string(evt.Trigger), string(out.Status))

	attrs := []any{
		slog.String("request_id", requestID),
		slog.String("event_id", eventID),
		slog.String("trigger", string(evt.Trigger)),
		slog.Int64("rule_id", out.RuleID),
		slog.String("namespace", out.Namespace),
		slog.String("status", string(out.Status)),
		slog.String("reason", out.Reason),
		slog.Duration("duration", out.Duration),
	}
	errText := ""
	if out.Err != nil {
		errText = slack.Redact(out.Err.Error())
		attrs = append(attrs, slog.String("error", errText))
	}

	switch {
	case out.Status == entity.DeliveryFailed && out.Reason == "auth":
		slog.Error("slack rejected the bot token", attrs...)
	case out.Status == entity.DeliveryFailed:
		slog.Warn("rule notification failed", attrs...)
	case out.Status == entity.DeliverySkipped:
		slog.Warn("rule skipped", attrs...)
	case out.Status == entity.DeliverySent:
		slog.Info("rule notification sent", append(attrs,
			slog.String("kind", string(out.Kind)),
			slog.Int("attempts", out.Attempts))...)
	default:
		slog.Debug("rule bailed", attrs...)
	}

	s.record(ctx, entity.Delivery{
		ID:        uuid.New().String(),
		EventID:   eventID,
		RuleID:    out.RuleID,
		Namespace: out.Namespace,
		Trigger:   evt.Trigger,
		Status:    out.Status,
		Reason:    out.Reason,
		Kind:      string(out.Kind),
		Attempts:  out.Attempts,
		Error:     errText,
		Duration:  out.Duration,
		CreatedAt: time.Now(),
	})
}

func (s *service) record(ctx context.Context, d entity.Delivery) {
	if s.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in delivery recorder", slog.Any("panic", r))
		}
	}()
	s.recorder.Record(ctx, d)
}

func (s *service) warnAuth(ns, method string, err error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.authWarnings[ns] = AuthWarning{
		Namespace: ns,
		Method:    method,
		Error:     slack.Redact(err.Error()),
		At:        time.Now(),
	}
}

// AuthWarnings implements Service.AuthWarnings.
func (s *service) AuthWarnings() []AuthWarning {
	s.authMu.RLock()
	defer s.authMu.RUnlock()
	out := make([]AuthWarning, 0, len(s.authWarnings))
	for _, w := range s.authWarnings {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}

// Health implements Service.Health.
func (s *service) Health() []DestinationHealth {
	snap := s.breakers.Snapshot()
	out := make([]DestinationHealth, 0, len(snap))
	for name, state := range snap {
		out = append(out, DestinationHealth{
			Name:               name,
			State:              state.String(),
			CircuitBreakerOpen: state == gobreaker.StateOpen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown implements Service.Shutdown.
func (s *service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down notification service")

	s.stopOnce.Do(func() { close(s.stopping) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Abort in-flight sends so workers exit promptly.
		s.baseCancel()
		slog.Warn("Notification service shutdown timeout")
		return ctx.Err()
	}

	for {
		select {
		case j := <-s.queue:
			s.drop(j, "shutdown", ErrServiceClosed)
		default:
			SetQueueDepth(0)
			s.baseCancel()
			slog.Info("Notification service shutdown complete")
			return nil
		}
	}
}
