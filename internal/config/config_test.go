package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 18890, cfg.Hub.Port)
	assert.Equal(t, "loopback", cfg.Hub.Bind)
	assert.Equal(t, 30, cfg.Hub.Limits.MessagesPerMinute)
	assert.Equal(t, 3, cfg.Hub.Limits.MaxConnectionsPerUser)
	assert.Equal(t, 5, cfg.Hub.Matchmaking.RequestTTLMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
hub:
  port: 9000
  bind: lan
  auth:
    secret: s3cret
  limits:
    messagesPerMinute: 5
storage:
  path: /tmp/amerhub-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Hub.Port)
	assert.Equal(t, "lan", cfg.Hub.Bind)
	assert.Equal(t, "s3cret", cfg.Hub.Auth.Secret)
	assert.Equal(t, 5, cfg.Hub.Limits.MessagesPerMinute)
	assert.Equal(t, "/tmp/amerhub-test.db", cfg.Storage.Path)
	// untouched fields keep their defaults
	assert.Equal(t, 3, cfg.Hub.Limits.MaxConnectionsPerUser)
	assert.Equal(t, 30, cfg.Hub.Heartbeat.IntervalSeconds)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "hub: [not: valid")

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_SecretEnvExpansion(t *testing.T) {
	t.Setenv("AMERHUB_TEST_SECRET", "from-env")
	path := writeConfig(t, `
hub:
  auth:
    secret: ${AMERHUB_TEST_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Hub.Auth.Secret)
}

func TestLoad_UnsetEnvVarLeftVerbatim(t *testing.T) {
	path := writeConfig(t, `
hub:
  auth:
    secret: ${AMERHUB_DEFINITELY_UNSET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${AMERHUB_DEFINITELY_UNSET}", cfg.Hub.Auth.Secret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AMERHUB_PORT", "7777")
	t.Setenv("AMERHUB_SECRET", "env-secret")
	t.Setenv("AMERHUB_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Hub.Port)
	assert.Equal(t, "env-secret", cfg.Hub.Auth.Secret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_DefaultsWithSecretAreClean(t *testing.T) {
	cfg := Defaults()
	cfg.Hub.Auth.Secret = "s3cret"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_RequiresSecret(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "hub.auth.secret", issues[0].Path)
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Hub.Port = 99999
	cfg.Hub.Bind = "everywhere"
	cfg.Hub.Limits.MaxConnectionsPerUser = 0
	cfg.Hub.Heartbeat.CloseAfterSeconds = cfg.Hub.Heartbeat.ProbeAfterSeconds
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	paths := make([]string, len(issues))
	for i, issue := range issues {
		paths[i] = issue.Path
	}
	assert.Contains(t, paths, "hub.port")
	assert.Contains(t, paths, "hub.bind")
	assert.Contains(t, paths, "hub.auth.secret")
	assert.Contains(t, paths, "hub.limits.maxConnectionsPerUser")
	assert.Contains(t, paths, "hub.heartbeat.closeAfterSeconds")
	assert.Contains(t, paths, "logging.level")
}

func TestValidate_TLSRequiresPaths(t *testing.T) {
	cfg := Defaults()
	cfg.Hub.Auth.Secret = "s3cret"
	cfg.Hub.TLS.Enabled = true

	issues := Validate(&cfg)
	require.Len(t, issues, 2)

	cfg.Hub.TLS.CertPath = "/etc/certs/hub.pem"
	cfg.Hub.TLS.KeyPath = "/etc/certs/hub.key"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_AssistantRequiresEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Hub.Auth.Secret = "s3cret"
	cfg.Assistant.Enabled = true

	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "assistant.endpoint", issues[0].Path)
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AMERHUB_HOME", base)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)

	require.NoError(t, paths.EnsureDirs())
	for _, dir := range []string{paths.Data, paths.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
