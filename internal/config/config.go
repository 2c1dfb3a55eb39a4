package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NVR is one polling target. The password is shared fleet-wide and
// lives outside this struct.
type NVR struct {
	IP   string `yaml:"ip"`
	User string `yaml:"user"`
}

type MonitorConfig struct {
	PollIntervalSeconds    int `yaml:"poll_interval_seconds"`
	FirstAlertDelayMinutes int `yaml:"first_alert_delay_minutes"`
	AlertFrequencyMinutes  int `yaml:"alert_frequency_minutes"`
	MuteAfterNAlerts       int `yaml:"mute_after_n_alerts"`
}

type MailConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	UseTLS     bool     `yaml:"use_tls"`
	Recipients []string `yaml:"recipients"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Config is an immutable snapshot. The supervisor always restarts on a
// new snapshot instead of patching a running one; Version tells the
// snapshots apart in logs.
type Config struct {
	Version        int            `yaml:"-"`
	NVRs           []NVR          `yaml:"nvrs"`
	NVRPassword    string         `yaml:"nvr_password"`
	CameraNameFile string         `yaml:"camera_name_file"`
	Monitor        MonitorConfig  `yaml:"monitor"`
	Mail           MailConfig     `yaml:"mail"`
	Database       DatabaseConfig `yaml:"database"`
	NATS           NATSConfig     `yaml:"nats"`
	HTTP           HTTPConfig     `yaml:"http"`
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSeconds) * time.Second
}

func (c *Config) FirstAlertDelay() time.Duration {
	return time.Duration(c.Monitor.FirstAlertDelayMinutes) * time.Minute
}

func (c *Config) AlertFrequency() time.Duration {
	return time.Duration(c.Monitor.AlertFrequencyMinutes) * time.Minute
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Load reads the YAML file, applies defaults and environment
// overrides for secrets, and returns a validated snapshot.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		CameraNameFile: "camera_names.csv",
		Monitor: MonitorConfig{
			PollIntervalSeconds:    60,
			FirstAlertDelayMinutes: 15,
			AlertFrequencyMinutes:  60,
			MuteAfterNAlerts:       3,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		HTTP: HTTPConfig{Listen: ":8080"},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	envOverride(&cfg.NVRPassword, "NVR_SHARED_PASSWORD")
	envOverride(&cfg.Mail.Password, "MAIL_PASSWORD")
	envOverride(&cfg.Database.Host, "DB_HOST")
	envOverride(&cfg.Database.Port, "DB_PORT")
	envOverride(&cfg.Database.User, "DB_USER")
	envOverride(&cfg.Database.Password, "DB_PASSWORD")
	envOverride(&cfg.Database.Name, "DB_NAME")
	envOverride(&cfg.Database.SSLMode, "DB_SSLMODE")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the fail-fast startup rules: a monitor without
// targets or without the shared credential never starts.
func (c *Config) Validate() error {
	if len(c.NVRs) == 0 {
		return fmt.Errorf("config: nvrs list is empty")
	}
	for i, n := range c.NVRs {
		if n.IP == "" {
			return fmt.Errorf("config: nvrs[%d] has no ip", i)
		}
		if n.User == "" {
			return fmt.Errorf("config: nvrs[%d] (%s) has no user", i, n.IP)
		}
	}
	if c.NVRPassword == "" {
		return fmt.Errorf("config: nvr_password not set (yaml or NVR_SHARED_PASSWORD)")
	}
	if c.Monitor.PollIntervalSeconds <= 0 {
		return fmt.Errorf("config: poll_interval_seconds must be positive")
	}
	if c.Monitor.MuteAfterNAlerts <= 0 {
		return fmt.Errorf("config: mute_after_n_alerts must be positive")
	}
	return nil
}

// NVRIPs returns the configured NVR addresses in order.
func (c *Config) NVRIPs() []string {
	ips := make([]string, 0, len(c.NVRs))
	for _, n := range c.NVRs {
		ips = append(ips, n.IP)
	}
	return ips
}
