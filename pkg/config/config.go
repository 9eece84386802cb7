package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"trafficwaker/pkg/interfaces"
)

const defaultConfigPath = "config/config.yaml"

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	K8s        K8sConfig        `yaml:"k8s"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Redis      RedisConfig      `yaml:"redis"`
	MySQL      MySQLConfig      `yaml:"mysql"`

	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for the admin API (optional, if empty, auth is disabled)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	Format string           `yaml:"format"` // console, json
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// K8sConfig K8s configuration
type K8sConfig struct {
	Kubeconfig       string `yaml:"kubeconfig"`        // outside a cluster; empty uses default loading rules
	WorkloadSelector string `yaml:"workload_selector"` // label selector for Deployments in scope
}

// PrometheusConfig metrics backend configuration
type PrometheusConfig struct {
	URL       string        `yaml:"url"`
	Query     string        `yaml:"query"`      // empty builds the ingress request-rate query
	Window    time.Duration `yaml:"window"`     // trailing rate window
	Timeout   time.Duration `yaml:"timeout"`    // query timeout
	RateScale float64       `yaml:"rate_scale"` // query result -> requests per minute
}

// ReconcilerConfig wake/sleep reconciler configuration
type ReconcilerConfig struct {
	Enabled         *bool         `yaml:"enabled"` // default true
	Namespace       string        `yaml:"namespace"`
	Service         string        `yaml:"service"`
	Mode            string        `yaml:"mode"`             // replicas, schedule-patch
	PollInterval    time.Duration `yaml:"poll_interval"`
	WakeThreshold   *float64      `yaml:"wake_threshold"`   // requests per minute, default 1; 0 wakes on any traffic
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	Timezone        string        `yaml:"timezone"`         // IANA name
	MutationTimeout time.Duration `yaml:"mutation_timeout"`
	WakeReplicas    int           `yaml:"wake_replicas"`    // for workloads without a recorded count
	PatchLead       time.Duration `yaml:"patch_lead"`       // schedule-patch mode: now + lead
	SleepInfoNames  []string      `yaml:"sleepinfo_names"`  // schedule-patch mode: empty = all in namespace
	EventRetention  time.Duration `yaml:"event_retention"`  // wake/sleep history retention
}

// RedisConfig Redis configuration (optional, empty addr disables)
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQL configuration (optional, empty host disables)
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// NotificationConfig action notifications (optional, empty URL disables)
type NotificationConfig struct {
	FeishuWebhookURL string   `yaml:"feishu_webhook_url"`
	Actions          []string `yaml:"actions"` // wake, sleep, failed; empty = all
}

// DSN builds the go-sql-driver DSN
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// envOverrides environment variables; unset variables keep file values
type envOverrides struct {
	Namespace        *string        `envconfig:"WAKER_NAMESPACE"`
	Service          *string        `envconfig:"WAKER_SERVICE"`
	Mode             *string        `envconfig:"WAKER_MODE"`
	Enabled          *bool          `envconfig:"WAKER_ENABLED"`
	PollInterval     *time.Duration `envconfig:"WAKER_POLL_INTERVAL"`
	WakeThreshold    *float64       `envconfig:"WAKER_WAKE_THRESHOLD"`
	IdleTimeout      *time.Duration `envconfig:"WAKER_IDLE_TIMEOUT"`
	Timezone         *string        `envconfig:"WAKER_TIMEZONE"`
	MutationTimeout  *time.Duration `envconfig:"WAKER_MUTATION_TIMEOUT"`
	WakeReplicas     *int           `envconfig:"WAKER_WAKE_REPLICAS"`
	PatchLead        *time.Duration `envconfig:"WAKER_PATCH_LEAD"`
	SleepInfoNames   []string       `envconfig:"WAKER_SLEEPINFO_NAMES"`
	WorkloadSelector *string        `envconfig:"WAKER_WORKLOAD_SELECTOR"`
	PrometheusURL    *string        `envconfig:"PROMETHEUS_URL"`
	PrometheusQuery  *string        `envconfig:"PROMETHEUS_QUERY"`
	Port             *int           `envconfig:"WAKER_PORT"`
	APIKey           *string        `envconfig:"WAKER_API_KEY"`
	LogLevel         *string        `envconfig:"WAKER_LOG_LEVEL"`
	LogFormat        *string        `envconfig:"WAKER_LOG_FORMAT"`
	RedisAddr        *string        `envconfig:"REDIS_ADDR"`
	RedisPassword    *string        `envconfig:"REDIS_PASSWORD"`
	MySQLHost        *string        `envconfig:"MYSQL_HOST"`
	MySQLPassword    *string        `envconfig:"MYSQL_PASSWORD"`
	FeishuWebhookURL *string        `envconfig:"FEISHU_WEBHOOK_URL"`
}

// Init loads configuration into GlobalConfig
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Load reads the YAML file (optional when path is empty), overlays the
// environment, applies defaults and validates
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", interfaces.ErrConfigInvalid, path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrConfigInvalid, err)
	}

	r := &cfg.Reconciler
	setString(&r.Namespace, env.Namespace)
	setString(&r.Service, env.Service)
	setString(&r.Mode, env.Mode)
	setString(&r.Timezone, env.Timezone)
	setString(&cfg.K8s.WorkloadSelector, env.WorkloadSelector)
	setString(&cfg.Prometheus.URL, env.PrometheusURL)
	setString(&cfg.Prometheus.Query, env.PrometheusQuery)
	setString(&cfg.Server.APIKey, env.APIKey)
	setString(&cfg.Logger.Level, env.LogLevel)
	setString(&cfg.Logger.Format, env.LogFormat)
	setString(&cfg.Redis.Addr, env.RedisAddr)
	setString(&cfg.Redis.Password, env.RedisPassword)
	setString(&cfg.MySQL.Host, env.MySQLHost)
	setString(&cfg.MySQL.Password, env.MySQLPassword)
	setString(&cfg.Notification.FeishuWebhookURL, env.FeishuWebhookURL)

	if env.Enabled != nil {
		enabled := *env.Enabled
		r.Enabled = &enabled
	}
	if env.PollInterval != nil {
		r.PollInterval = *env.PollInterval
	}
	if env.WakeThreshold != nil {
		threshold := *env.WakeThreshold
		r.WakeThreshold = &threshold
	}
	if env.IdleTimeout != nil {
		r.IdleTimeout = *env.IdleTimeout
	}
	if env.MutationTimeout != nil {
		r.MutationTimeout = *env.MutationTimeout
	}
	if env.WakeReplicas != nil {
		r.WakeReplicas = *env.WakeReplicas
	}
	if env.PatchLead != nil {
		r.PatchLead = *env.PatchLead
	}
	if len(env.SleepInfoNames) > 0 {
		r.SleepInfoNames = env.SleepInfoNames
	}
	if env.Port != nil {
		cfg.Server.Port = *env.Port
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// applyDefaults fills unset fields. Zero durations are defaulted; negative
// values are left for Validate to reject.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}

	if cfg.Prometheus.URL == "" {
		cfg.Prometheus.URL = "http://prometheus-server.monitoring.svc:80"
	}
	if cfg.Prometheus.Window == 0 {
		cfg.Prometheus.Window = 2 * time.Minute
	}
	if cfg.Prometheus.Timeout == 0 {
		cfg.Prometheus.Timeout = 5 * time.Second
	}
	if cfg.Prometheus.RateScale == 0 {
		cfg.Prometheus.RateScale = 60
	}

	r := &cfg.Reconciler
	if r.Enabled == nil {
		enabled := true
		r.Enabled = &enabled
	}
	if r.Mode == "" {
		r.Mode = "replicas"
	}
	if r.PollInterval == 0 {
		r.PollInterval = 60 * time.Second
	}
	if r.WakeThreshold == nil {
		threshold := 1.0
		r.WakeThreshold = &threshold
	}
	if r.IdleTimeout == 0 {
		r.IdleTimeout = 2 * time.Minute
	}
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if r.MutationTimeout == 0 {
		r.MutationTimeout = 10 * time.Second
	}
	if r.WakeReplicas == 0 {
		r.WakeReplicas = 1
	}
	if r.PatchLead == 0 {
		r.PatchLead = 2 * time.Minute
	}
	if r.EventRetention == 0 {
		r.EventRetention = 7 * 24 * time.Hour
	}

	if cfg.MySQL.Port == 0 {
		cfg.MySQL.Port = 3306
	}
}

// Validate rejects malformed settings with ErrConfigInvalid
func (c *Config) Validate() error {
	r := c.Reconciler
	var problems []string

	if r.Namespace == "" {
		problems = append(problems, "reconciler namespace is required")
	}
	if r.Service == "" && c.Prometheus.Query == "" {
		problems = append(problems, "reconciler service or prometheus query is required")
	}
	if r.Mode != "replicas" && r.Mode != "schedule-patch" {
		problems = append(problems, fmt.Sprintf("unknown reconciler mode %q", r.Mode))
	}
	if r.PollInterval <= 0 {
		problems = append(problems, "poll interval must be > 0")
	}
	if c.ReconcilerWakeThreshold() < 0 {
		problems = append(problems, "wake threshold must be >= 0")
	}
	if r.IdleTimeout <= 0 {
		problems = append(problems, "idle timeout must be > 0")
	}
	if r.MutationTimeout <= 0 {
		problems = append(problems, "mutation timeout must be > 0")
	}
	if r.WakeReplicas < 1 {
		problems = append(problems, "wake replicas must be >= 1")
	}
	if r.PatchLead < 0 {
		problems = append(problems, "patch lead must be >= 0")
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone %q", r.Timezone))
	}
	if c.Prometheus.Timeout <= 0 || c.Prometheus.Window <= 0 || c.Prometheus.RateScale <= 0 {
		problems = append(problems, "prometheus window, timeout and rate scale must be > 0")
	}
	if (c.Logger.Output == "file" || c.Logger.Output == "both") && c.Logger.File.Path == "" {
		problems = append(problems, "logger file path is required for file output")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server port %d", c.Server.Port))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ReconcilerEnabled initial enabled state of the reconciler
func (c *Config) ReconcilerEnabled() bool {
	return c.Reconciler.Enabled == nil || *c.Reconciler.Enabled
}

// ReconcilerWakeThreshold wake threshold in requests per minute
func (c *Config) ReconcilerWakeThreshold() float64 {
	if c.Reconciler.WakeThreshold == nil {
		return 1
	}
	return *c.Reconciler.WakeThreshold
}

// Location parsed reconciler timezone; call after Validate
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reconciler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
