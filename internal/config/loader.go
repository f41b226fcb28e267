package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable
// values. Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the config file, applies environment overrides, and
// returns a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.Hub.Auth.Secret = expandEnvVars(cfg.Hub.Auth.Secret)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Hub.Port == 0 {
		cfg.Hub.Port = def.Hub.Port
	}
	if cfg.Hub.Bind == "" {
		cfg.Hub.Bind = def.Hub.Bind
	}
	if cfg.Hub.Auth.TokenTTLMinutes == 0 {
		cfg.Hub.Auth.TokenTTLMinutes = def.Hub.Auth.TokenTTLMinutes
	}
	if cfg.Hub.Limits.MessagesPerMinute == 0 {
		cfg.Hub.Limits.MessagesPerMinute = def.Hub.Limits.MessagesPerMinute
	}
	if cfg.Hub.Limits.ConnectionAttemptsPerMinute == 0 {
		cfg.Hub.Limits.ConnectionAttemptsPerMinute = def.Hub.Limits.ConnectionAttemptsPerMinute
	}
	if cfg.Hub.Limits.MaxConnectionsPerUser == 0 {
		cfg.Hub.Limits.MaxConnectionsPerUser = def.Hub.Limits.MaxConnectionsPerUser
	}
	if cfg.Hub.Heartbeat.IntervalSeconds == 0 {
		cfg.Hub.Heartbeat.IntervalSeconds = def.Hub.Heartbeat.IntervalSeconds
	}
	if cfg.Hub.Heartbeat.ProbeAfterSeconds == 0 {
		cfg.Hub.Heartbeat.ProbeAfterSeconds = def.Hub.Heartbeat.ProbeAfterSeconds
	}
	if cfg.Hub.Heartbeat.CloseAfterSeconds == 0 {
		cfg.Hub.Heartbeat.CloseAfterSeconds = def.Hub.Heartbeat.CloseAfterSeconds
	}
	if cfg.Hub.Matchmaking.RequestTTLMinutes == 0 {
		cfg.Hub.Matchmaking.RequestTTLMinutes = def.Hub.Matchmaking.RequestTTLMinutes
	}
	if cfg.Hub.Matchmaking.HistoryLimit == 0 {
		cfg.Hub.Matchmaking.HistoryLimit = def.Hub.Matchmaking.HistoryLimit
	}
	if cfg.Assistant.TimeoutSeconds == 0 {
		cfg.Assistant.TimeoutSeconds = def.Assistant.TimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}

// applyEnvOverrides reads AMERHUB_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AMERHUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.Port = port
		}
	}
	if v := os.Getenv("AMERHUB_BIND"); v != "" {
		cfg.Hub.Bind = v
	}
	if v := os.Getenv("AMERHUB_SECRET"); v != "" {
		cfg.Hub.Auth.Secret = v
	}
	if v := os.Getenv("AMERHUB_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("AMERHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
