package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
nvrs:
  - ip: 10.0.0.1
    user: admin
nvr_password: secret
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Monitor.PollIntervalSeconds)
	assert.Equal(t, 15, cfg.Monitor.FirstAlertDelayMinutes)
	assert.Equal(t, 60, cfg.Monitor.AlertFrequencyMinutes)
	assert.Equal(t, 3, cfg.Monitor.MuteAfterNAlerts)
	assert.Equal(t, "camera_names.csv", cfg.CameraNameFile)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "localhost", cfg.Database.Host)

	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, 15*time.Minute, cfg.FirstAlertDelay())
	assert.Equal(t, time.Hour, cfg.AlertFrequency())
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
nvrs:
  - ip: 10.0.0.1
    user: admin
  - ip: 10.0.0.2
    user: viewer
nvr_password: secret
monitor:
  poll_interval_seconds: 30
  first_alert_delay_minutes: 5
  alert_frequency_minutes: 120
  mute_after_n_alerts: 2
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.FirstAlertDelay())
	assert.Equal(t, 2*time.Hour, cfg.AlertFrequency())
	assert.Equal(t, 2, cfg.Monitor.MuteAfterNAlerts)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.NVRIPs())
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("NVR_SHARED_PASSWORD", "from-env")
	t.Setenv("DB_PASSWORD", "db-pass")

	cfg, err := Load(writeConfig(t, `
nvrs:
  - ip: 10.0.0.1
    user: admin
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.NVRPassword)
	assert.Equal(t, "db-pass", cfg.Database.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no nvrs", `nvr_password: x`, "nvrs list is empty"},
		{"nvr without ip", "nvrs:\n  - user: admin\nnvr_password: x", "has no ip"},
		{"nvr without user", "nvrs:\n  - ip: 10.0.0.1\nnvr_password: x", "has no user"},
		{"no password", "nvrs:\n  - ip: 10.0.0.1\n    user: admin", "nvr_password not set"},
		{"bad interval", minimalYAML + "monitor:\n  poll_interval_seconds: 0", "poll_interval_seconds"},
		{"bad mute threshold", minimalYAML + "monitor:\n  mute_after_n_alerts: -1", "mute_after_n_alerts"},
	}
	t.Setenv("NVR_SHARED_PASSWORD", "")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDatabaseConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5433", User: "hik", Password: "pw", Name: "status", SSLMode: "disable"}
	assert.Equal(t, "postgres://hik:pw@db:5433/status?sslmode=disable", d.ConnString())
}
