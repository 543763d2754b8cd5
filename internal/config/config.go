package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Media     MediaConfig     `yaml:"media"`
	Sync      SyncConfig      `yaml:"sync"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Database  DatabaseConfig  `yaml:"database"`
}

// WorkspaceConfig controls where checkouts and build artifacts live
type WorkspaceConfig struct {
	Root       string `yaml:"root"`
	Persistent bool   `yaml:"persistent"` // Keep checkouts between builds for incremental fetches
}

// MediaConfig controls the URL prefixes injected into generated configs
type MediaConfig struct {
	// StaticPrefix is the proxied static asset prefix, e.g. "/_/static".
	StaticPrefix string `yaml:"static_prefix"`
	// MediaURL is the absolute media URL used for projects pinned to the
	// legacy asset layout, e.g. "http://docsforge.example.org/static".
	MediaURL string `yaml:"media_url"`
	// ProductionDomain is used when building view/edit-source and doc-diff links.
	ProductionDomain string `yaml:"production_domain"`
}

// Sync modes.
const (
	SyncModeLocal  = "local"
	SyncModeRemote = "remote"
	SyncModePull   = "pull"
)

// SyncConfig selects how build output reaches the serving hosts
type SyncConfig struct {
	Mode       string   `yaml:"mode"` // "local", "remote" or "pull"
	User       string   `yaml:"user,omitempty"`
	AppServers []string `yaml:"app_servers,omitempty"`
	// PublishRoot is where published sites live, locally or on the app
	// servers. Builds are not published when empty.
	PublishRoot string `yaml:"publish_root,omitempty"`
	// Archive stores a content-addressed copy of every published build.
	Archive    bool   `yaml:"archive"`
	ArchiveDir string `yaml:"archive_dir,omitempty"`
}

// DaemonConfig configures the build queue and rebuild schedule
type DaemonConfig struct {
	NATSURL  string `yaml:"nats_url"`
	Subject  string `yaml:"subject"`
	Schedule string `yaml:"schedule,omitempty"` // Periodic rebuild interval, e.g. "30m"
}

// MetricsConfig configures the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// DatabaseConfig locates the project/version database
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load loads the service configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace.Root == "" {
		c.Workspace.Root = os.TempDir()
	}
	if c.Media.StaticPrefix == "" {
		c.Media.StaticPrefix = "/_/static"
	}
	if c.Sync.Mode == "" {
		c.Sync.Mode = SyncModeLocal
	}
	if c.Daemon.Subject == "" {
		c.Daemon.Subject = "docsforge.builds"
	}
	if c.Database.Path == "" {
		c.Database.Path = "docsforge.db"
	}
}

func (c *Config) validate() error {
	switch c.Sync.Mode {
	case SyncModeLocal, SyncModeRemote, SyncModePull:
	default:
		return fmt.Errorf("invalid sync mode %q: must be local, remote or pull", c.Sync.Mode)
	}
	if c.Sync.Mode != SyncModeLocal && len(c.Sync.AppServers) == 0 {
		return fmt.Errorf("sync mode %q requires at least one app server", c.Sync.Mode)
	}
	return nil
}
