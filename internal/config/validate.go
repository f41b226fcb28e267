package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Hub.Port < 0 || cfg.Hub.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "hub.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Hub.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Hub.Bind != "" && !slices.Contains(validBinds, cfg.Hub.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "hub.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Hub.Bind),
		})
	}

	if cfg.Hub.Auth.Secret == "" {
		issues = append(issues, ValidationIssue{
			Path:    "hub.auth.secret",
			Message: "secret is required (set hub.auth.secret or AMERHUB_SECRET)",
		})
	}

	if cfg.Hub.Limits.MaxConnectionsPerUser < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "hub.limits.maxConnectionsPerUser",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Hub.Limits.MaxConnectionsPerUser),
		})
	}

	if cfg.Hub.Heartbeat.CloseAfterSeconds <= cfg.Hub.Heartbeat.ProbeAfterSeconds {
		issues = append(issues, ValidationIssue{
			Path:    "hub.heartbeat.closeAfterSeconds",
			Message: fmt.Sprintf("must exceed probeAfterSeconds (%d), got %d",
				cfg.Hub.Heartbeat.ProbeAfterSeconds, cfg.Hub.Heartbeat.CloseAfterSeconds),
		})
	}

	if cfg.Hub.TLS.Enabled {
		if cfg.Hub.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "hub.tls.certPath",
				Message: "required when TLS is enabled",
			})
		}
		if cfg.Hub.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "hub.tls.keyPath",
				Message: "required when TLS is enabled",
			})
		}
	}

	if cfg.Assistant.Enabled && cfg.Assistant.Endpoint == "" {
		issues = append(issues, ValidationIssue{
			Path:    "assistant.endpoint",
			Message: "required when the assistant is enabled",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
