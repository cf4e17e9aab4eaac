// Package config defines the cluster's typed configuration (§6.2 of
// the spec) and a thin environment-variable loader for the cmd/ entry
// points. File and flag parsing are an external, out-of-scope concern;
// the core only ever consumes a populated Config value.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grishkovelli/asc/internal/apperrors"
	"github.com/grishkovelli/asc/internal/logging"
)

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

type LoggingConfig struct {
	Level  string
	Pretty bool
}

type BlockDetectionConfig struct {
	StatusCodes  []int
	BodyKeywords []string
}

type GovernorConfig struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	CooldownFactor float64
	BlockDetection BlockDetectionConfig
}

type WorkerConfig struct {
	Concurrency int
}

type ControllerConfig struct {
	WorkerTimeout          time.Duration
	MetricsUpdateInterval  time.Duration
}

// DashboardConfig controls the optional live-metrics websocket feed
// (§2 component 13). Enabled is false by default: the dashboard is an
// operator convenience, not a required cluster service.
type DashboardConfig struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Redis      RedisConfig
	Logging    LoggingConfig
	Proxies    []string
	UserAgents []string
	Governor   GovernorConfig
	Worker     WorkerConfig
	Controller ControllerConfig
	Dashboard  DashboardConfig
}

// Validate checks the invariants the spec requires of the enumerated
// options (§6.2), independent of how they were populated.
func (c Config) Validate() error {
	if c.Governor.InitialDelay <= 0 {
		return apperrors.NewConfigurationError(fmt.Errorf("governor.initialDelay must be positive"))
	}
	if c.Governor.MaxDelay < c.Governor.InitialDelay {
		return apperrors.NewConfigurationError(fmt.Errorf("governor.maxDelay must be >= governor.initialDelay"))
	}
	if c.Governor.BackoffFactor <= 1 {
		return apperrors.NewConfigurationError(fmt.Errorf("governor.backoffFactor must be > 1"))
	}
	if c.Governor.CooldownFactor <= 1 {
		return apperrors.NewConfigurationError(fmt.Errorf("governor.cooldownFactor must be > 1"))
	}
	if c.Worker.Concurrency < 1 {
		return apperrors.NewConfigurationError(fmt.Errorf("worker.concurrency must be >= 1"))
	}
	if c.Controller.WorkerTimeout < time.Second {
		return apperrors.NewConfigurationError(fmt.Errorf("controller.workerTimeout must be >= 1s"))
	}
	if c.Controller.MetricsUpdateInterval < time.Second {
		return apperrors.NewConfigurationError(fmt.Errorf("controller.metricsUpdateInterval must be >= 1s"))
	}
	return nil
}

// Default returns the spec's documented defaults (§6.2) before
// environment overrides are applied.
func Default() Config {
	return Config{
		Redis: RedisConfig{Host: "localhost", Port: 6379, KeyPrefix: "asc:"},
		Logging: LoggingConfig{Level: "info", Pretty: false},
		UserAgents: []string{"Googlebot"},
		Governor: GovernorConfig{
			InitialDelay:   1000 * time.Millisecond,
			MaxDelay:       30000 * time.Millisecond,
			BackoffFactor:  1.5,
			CooldownFactor: 1.1,
			BlockDetection: BlockDetectionConfig{
				StatusCodes:  []int{403, 429, 503},
				BodyKeywords: []string{"captcha", "blocked", "are you a robot"},
			},
		},
		Worker:     WorkerConfig{Concurrency: 1},
		Controller: ControllerConfig{WorkerTimeout: 60 * time.Second, MetricsUpdateInterval: 30 * time.Second},
		Dashboard:  DashboardConfig{Enabled: false, Addr: ":8080"},
	}
}

// Load reads environment-variable overrides for every field in
// Default(), grounded on the codebase's GetEnv helper pattern, and
// returns the validated result.
func Load(log *logging.Logger) (Config, error) {
	cfg := Default()

	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host, log)
	cfg.Redis.Port = getEnvInt("REDIS_PORT", cfg.Redis.Port, log)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password, log)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB, log)
	cfg.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix, log)

	cfg.Logging.Level = getEnv("LOGGING_LEVEL", cfg.Logging.Level, log)
	cfg.Logging.Pretty = getEnvBool("LOGGING_PRETTY", cfg.Logging.Pretty, log)

	cfg.Proxies = getEnvList("PROXIES", cfg.Proxies, log)
	cfg.UserAgents = getEnvList("USER_AGENTS", cfg.UserAgents, log)

	cfg.Governor.InitialDelay = getEnvDurationMS("GOVERNOR_INITIAL_DELAY_MS", cfg.Governor.InitialDelay, log)
	cfg.Governor.MaxDelay = getEnvDurationMS("GOVERNOR_MAX_DELAY_MS", cfg.Governor.MaxDelay, log)
	cfg.Governor.BackoffFactor = getEnvFloat("GOVERNOR_BACKOFF_FACTOR", cfg.Governor.BackoffFactor, log)
	cfg.Governor.CooldownFactor = getEnvFloat("GOVERNOR_COOLDOWN_FACTOR", cfg.Governor.CooldownFactor, log)
	cfg.Governor.BlockDetection.StatusCodes = getEnvIntList("GOVERNOR_BLOCK_STATUS_CODES", cfg.Governor.BlockDetection.StatusCodes, log)
	cfg.Governor.BlockDetection.BodyKeywords = getEnvList("GOVERNOR_BLOCK_BODY_KEYWORDS", cfg.Governor.BlockDetection.BodyKeywords, log)

	cfg.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency, log)

	cfg.Controller.WorkerTimeout = getEnvDurationSeconds("CONTROLLER_WORKER_TIMEOUT_SECONDS", cfg.Controller.WorkerTimeout, log)
	cfg.Controller.MetricsUpdateInterval = getEnvDurationSeconds("CONTROLLER_METRICS_UPDATE_INTERVAL_SECONDS", cfg.Controller.MetricsUpdateInterval, log)

	cfg.Dashboard.Enabled = getEnvBool("DASHBOARD_ENABLED", cfg.Dashboard.Enabled, log)
	cfg.Dashboard.Addr = getEnv("DASHBOARD_ADDR", cfg.Dashboard.Addr, log)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultVal string, log *logging.Logger) string {
	val, ok := lookupEnv(key)
	if !ok {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int, log *logging.Logger) int {
	val, ok := lookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		if log != nil {
			log.Warn("could not parse env var as int, using default", "env_var", key, "value", val, "default", defaultVal)
		}
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64, log *logging.Logger) float64 {
	val, ok := lookupEnv(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		if log != nil {
			log.Warn("could not parse env var as float, using default", "env_var", key, "value", val, "default", defaultVal)
		}
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool, log *logging.Logger) bool {
	val, ok := lookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		if log != nil {
			log.Warn("could not parse env var as bool, using default", "env_var", key, "value", val, "default", defaultVal)
		}
		return defaultVal
	}
	return b
}

func getEnvList(key string, defaultVal []string, log *logging.Logger) []string {
	val, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvIntList(key string, defaultVal []int, log *logging.Logger) []int {
	val, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i, err := strconv.Atoi(p)
		if err != nil {
			if log != nil {
				log.Warn("could not parse env var list entry as int, skipping", "env_var", key, "value", p)
			}
			continue
		}
		out = append(out, i)
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvDurationMS(key string, defaultVal time.Duration, log *logging.Logger) time.Duration {
	ms := getEnvInt(key, int(defaultVal.Milliseconds()), log)
	return time.Duration(ms) * time.Millisecond
}

func getEnvDurationSeconds(key string, defaultVal time.Duration, log *logging.Logger) time.Duration {
	secs := getEnvInt(key, int(defaultVal.Seconds()), log)
	return time.Duration(secs) * time.Second
}
