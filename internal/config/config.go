// Package config loads the bridge configuration: a YAML file named by
// BRIDGE_CONFIG, overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/rulecache"
	"slack-bridge/internal/infra/slack"
	validate "slack-bridge/internal/pkg/config"
	"slack-bridge/internal/resilience/retry"
	"slack-bridge/internal/usecase/notify"
	env "slack-bridge/pkg/config"
)

// RuleSource selects where notification rules are read from.
type RuleSource string

const (
	SourcePostgres RuleSource = "postgres"
	SourceSQLite   RuleSource = "sqlite"
	SourceFile     RuleSource = "file"
)

// minSecretLength is the shortest accepted HS256 ingest secret.
const minSecretLength = 32

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// BridgeConfig is the complete runtime configuration.
type BridgeConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// DebugEndpoints exposes /debug/deliveries and /debug/breakers.
	DebugEndpoints bool `yaml:"debug_endpoints"`

	// Namespaces are the rule channels dispatched for every event.
	Namespaces []string                   `yaml:"namespaces"`
	Defaults   map[string]notify.Defaults `yaml:"defaults"`

	Slack    SlackConfig    `yaml:"slack"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Store    StoreConfig    `yaml:"store"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Rules    RulesConfig    `yaml:"rules"`
}

// SlackConfig holds Slack credentials and client limits.
type SlackConfig struct {
	BotToken          string        `yaml:"bot_token"`
	VerificationToken string        `yaml:"verification_token"`
	APIBaseURL        string        `yaml:"api_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// IngestConfig secures POST /events.
type IngestConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	Leeway time.Duration `yaml:"leeway"`

	// RatePerSecond limits ingest and Slack callbacks per client IP.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// StoreConfig describes the store's decision callback.
type StoreConfig struct {
	CallbackURL string        `yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DispatchConfig sizes the notification workers.
type DispatchConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
	RuleTimeout    time.Duration `yaml:"rule_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	HistorySize    int           `yaml:"history_size"`
}

// RulesConfig selects and refreshes the rule store.
type RulesConfig struct {
	Source  RuleSource       `yaml:"source"`
	Path    string           `yaml:"path"`
	DSN     string           `yaml:"dsn"`
	Refresh rulecache.Config `yaml:"refresh"`

	// Watch reloads file rules as soon as they change on disk, in addition
	// to the scheduled refresh.
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a configuration that serves the default namespace
// from a rule file.
func DefaultConfig() BridgeConfig {
	sc := slack.DefaultConfig()
	nc := notify.DefaultConfig()
	return BridgeConfig{
		ListenAddr:     ":8080",
		DebugEndpoints: true,
		Namespaces:     []string{entity.DefaultNamespace},
		Defaults:       map[string]notify.Defaults{},
		Slack: SlackConfig{
			APIBaseURL:        sc.APIBaseURL,
			Timeout:           sc.Timeout,
			RequestsPerSecond: sc.RequestsPerSecond,
			Burst:             sc.Burst,
		},
		Ingest: IngestConfig{
			Issuer:        "store",
			Leeway:        30 * time.Second,
			RatePerSecond: 20,
			Burst:         40,
		},
		Store: StoreConfig{Timeout: 10 * time.Second},
		Dispatch: DispatchConfig{
			Workers:        nc.Workers,
			QueueSize:      nc.QueueSize,
			EnqueueTimeout: nc.EnqueueTimeout,
			RuleTimeout:    nc.RuleTimeout,
			MaxAttempts:    nc.Retry.MaxAttempts,
			HistorySize:    200,
		},
		Rules: RulesConfig{
			Source:  SourceFile,
			Path:    "rules.yaml",
			Refresh: rulecache.DefaultConfig(),
			Watch:   true,
		},
	}
}

// Load reads path (when non-empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (BridgeConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- path comes from the operator's environment
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays environment variables. Secrets are usually supplied
// this way rather than in the file.
func (c *BridgeConfig) applyEnv() {
	c.ListenAddr = env.GetEnvString("BRIDGE_LISTEN_ADDR", c.ListenAddr)
	c.Namespaces = env.GetEnvStringList("BRIDGE_NAMESPACES", c.Namespaces)
	c.DebugEndpoints = env.GetEnvBool("BRIDGE_DEBUG_ENDPOINTS", c.DebugEndpoints)

	c.Slack.BotToken = env.GetEnvString("SLACK_BOT_TOKEN", c.Slack.BotToken)
	c.Slack.VerificationToken = env.GetEnvString("SLACK_VERIFICATION_TOKEN", c.Slack.VerificationToken)
	c.Slack.APIBaseURL = env.GetEnvString("SLACK_API_BASE_URL", c.Slack.APIBaseURL)
	c.Slack.Timeout = env.GetEnvDuration("SLACK_TIMEOUT", c.Slack.Timeout)

	c.Ingest.Secret = env.GetEnvString("INGEST_JWT_SECRET", c.Ingest.Secret)
	c.Ingest.Issuer = env.GetEnvString("INGEST_JWT_ISSUER", c.Ingest.Issuer)
	c.Ingest.RatePerSecond = env.GetEnvFloat("INGEST_RATE_PER_SECOND", c.Ingest.RatePerSecond)
	c.Ingest.Burst = env.GetEnvInt("INGEST_RATE_BURST", c.Ingest.Burst)

	c.Store.CallbackURL = env.GetEnvString("STORE_CALLBACK_URL", c.Store.CallbackURL)

	c.Dispatch.Workers = env.GetEnvInt("BRIDGE_WORKERS", c.Dispatch.Workers)
	c.Dispatch.QueueSize = env.GetEnvInt("BRIDGE_QUEUE_SIZE", c.Dispatch.QueueSize)
	c.Dispatch.EnqueueTimeout = env.GetEnvDuration("BRIDGE_ENQUEUE_TIMEOUT", c.Dispatch.EnqueueTimeout)
	c.Dispatch.RuleTimeout = env.GetEnvDuration("BRIDGE_RULE_TIMEOUT", c.Dispatch.RuleTimeout)
	c.Dispatch.MaxAttempts = env.GetEnvInt("BRIDGE_MAX_ATTEMPTS", c.Dispatch.MaxAttempts)

	c.Rules.Source = RuleSource(env.GetEnvString("RULE_SOURCE", string(c.Rules.Source)))
	c.Rules.Path = env.GetEnvString("RULE_PATH", c.Rules.Path)
	c.Rules.DSN = env.GetEnvString("DATABASE_URL", c.Rules.DSN)
	c.Rules.Watch = env.GetEnvBool("RULE_WATCH", c.Rules.Watch)
}

// Validate reports every invalid field at once.
func (c *BridgeConfig) Validate() error {
	var errs []error
	add := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if c.ListenAddr == "" {
		add("listen_addr", errors.New("is required"))
	}
	if len(c.Namespaces) == 0 {
		add("namespaces", errors.New("at least one namespace is required"))
	}
	for _, ns := range c.Namespaces {
		if !namespacePattern.MatchString(ns) {
			add("namespaces", fmt.Errorf("invalid namespace %q", ns))
		}
	}
	for ns, d := range c.Defaults {
		if d.WebhookURL != "" {
			add("defaults."+ns+".webhook_url", entity.ValidateTarget(d.WebhookURL))
		}
	}

	if len(c.Ingest.Secret) < minSecretLength {
		add("ingest.secret", fmt.Errorf("must be at least %d bytes", minSecretLength))
	}
	if c.Ingest.RatePerSecond < 0 {
		add("ingest.rate_per_second", errors.New("must not be negative"))
	}
	add("ingest.leeway", validate.ValidateDuration(c.Ingest.Leeway, 0, 5*time.Minute))

	add("slack.timeout", validate.ValidateDuration(c.Slack.Timeout, time.Second, time.Minute))
	if c.Slack.RequestsPerSecond <= 0 {
		add("slack.requests_per_second", errors.New("must be positive"))
	}

	add("dispatch.workers", validate.ValidateIntRange(c.Dispatch.Workers, 1, 64))
	add("dispatch.queue_size", validate.ValidateIntRange(c.Dispatch.QueueSize, 1, 100000))
	add("dispatch.max_attempts", validate.ValidateIntRange(c.Dispatch.MaxAttempts, 1, 10))
	add("dispatch.history_size", validate.ValidateIntRange(c.Dispatch.HistorySize, 1, 10000))
	add("dispatch.enqueue_timeout", validate.ValidatePositiveDuration(c.Dispatch.EnqueueTimeout))
	add("dispatch.rule_timeout", validate.ValidateDuration(c.Dispatch.RuleTimeout, time.Second, 5*time.Minute))

	if c.Store.CallbackURL != "" {
		add("store.callback_url", validateCallbackURL(c.Store.CallbackURL))
	}

	switch c.Rules.Source {
	case SourceFile:
		if c.Rules.Path == "" {
			add("rules.path", errors.New("is required for the file source"))
		}
	case SourcePostgres, SourceSQLite:
		if c.Rules.DSN == "" {
			add("rules.dsn", fmt.Errorf("is required for the %s source", c.Rules.Source))
		}
	default:
		add("rules.source", fmt.Errorf("unknown source %q", c.Rules.Source))
	}
	add("rules.refresh", c.Rules.Refresh.Validate())

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must have a host")
	}
	return nil
}

// Interactive reports whether Web API features such as buttons can be used.
func (c *BridgeConfig) Interactive() bool {
	return c.Slack.BotToken != ""
}

// SlackClient returns the client configuration.
func (c *BridgeConfig) SlackClient() slack.Config {
	return slack.Config{
		APIBaseURL:        c.Slack.APIBaseURL,
		Token:             c.Slack.BotToken,
		Timeout:           c.Slack.Timeout,
		RequestsPerSecond: c.Slack.RequestsPerSecond,
		Burst:             c.Slack.Burst,
	}
}

// Notify returns the orchestrator configuration.
func (c *BridgeConfig) Notify() notify.Config {
	nc := notify.DefaultConfig()
	nc.Namespaces = append([]string(nil), c.Namespaces...)
	nc.Defaults = c.Defaults
	nc.Workers = c.Dispatch.Workers
	nc.QueueSize = c.Dispatch.QueueSize
	nc.EnqueueTimeout = c.Dispatch.EnqueueTimeout
	nc.RuleTimeout = c.Dispatch.RuleTimeout

	rc := retry.SlackDeliveryConfig()
	rc.MaxAttempts = c.Dispatch.MaxAttempts
	nc.Retry = rc
	return nc
}
