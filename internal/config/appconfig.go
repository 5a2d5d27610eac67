package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppConfig is the small application-wide configuration layer: daemon
// socket directory, default agent binary path, auto-lock default, and log
// settings. Per-connection settings (§4.4) live in separate JSON files,
// not here.
type AppConfig struct {
	DaemonSocketDir       string `yaml:"daemonSocketDir,omitempty"`
	AgentBinaryPath       string `yaml:"agentBinaryPath,omitempty"`
	AutoLockTimeoutMinutes int   `yaml:"autoLockTimeoutMinutes,omitempty"`
	LogLevel              string `yaml:"logLevel,omitempty"`
	LogFile               string `yaml:"logFile,omitempty"`
}

// AppConfigManager loads, merges, and saves the two-layer app config the
// same way the teacher's config.Manager merges user-then-project settings.
type AppConfigManager struct {
	userConfig    *AppConfig
	projectConfig *AppConfig
	merged        *AppConfig
	warnings      WarningSink
}

// defaultAppConfigYAML is what a corrupt config.yaml is replaced with
// during recovery: an empty document, which unmarshals into the
// zero-valued AppConfig that's already sitting in userConfig/projectConfig.
var defaultAppConfigYAML = []byte("{}\n")

// NewAppConfigManager returns a manager whose Get() is usable before Load
// is ever called, returning built-in defaults.
func NewAppConfigManager() *AppConfigManager {
	m := &AppConfigManager{
		userConfig:    &AppConfig{},
		projectConfig: &AppConfig{},
	}
	m.merge()
	return m
}

// Load reads "config.yaml" from userConfigDir and, if present,
// "<projectDir>/.termihub/config.yaml"; project values override user
// values, which override built-in defaults. A missing file is not an
// error. A file that exists but fails to parse is recovered rather than
// treated as fatal: it's backed up to "<name>.bak", replaced with
// defaults, and a Warning is recorded — drain it with Warnings() after
// Load returns. This is the startup recovery contract the config and
// settings loaders share; see recovery.go.
func (m *AppConfigManager) Load(userConfigDir, projectDir string) error {
	if err := loadYAML(filepath.Join(userConfigDir, "config.yaml"), m.userConfig, &m.warnings); err != nil {
		return fmt.Errorf("config: load user config: %w", err)
	}
	if err := loadYAML(filepath.Join(projectDir, ".termihub", "config.yaml"), m.projectConfig, &m.warnings); err != nil {
		return fmt.Errorf("config: load project config: %w", err)
	}
	m.merge()
	return nil
}

// Warnings drains and returns any recovery warnings recorded by the
// most recent Load — e.g. "config.yaml was corrupt, reset to defaults".
// Callers should surface these to the user, not swallow them.
func (m *AppConfigManager) Warnings() []Warning {
	return m.warnings.Drain()
}

func loadYAML(path string, out *AppConfig, sink *WarningSink) error {
	return LoadWithRecovery(path, defaultAppConfigYAML, sink, func(data []byte) error {
		return yaml.Unmarshal(data, out)
	})
}

func (m *AppConfigManager) merge() {
	m.merged = &AppConfig{
		DaemonSocketDir:        firstNonEmpty(m.projectConfig.DaemonSocketDir, m.userConfig.DaemonSocketDir, defaultDaemonSocketDir()),
		AgentBinaryPath:        firstNonEmpty(m.projectConfig.AgentBinaryPath, m.userConfig.AgentBinaryPath, "termihub-agent"),
		AutoLockTimeoutMinutes: firstNonZeroInt(m.projectConfig.AutoLockTimeoutMinutes, m.userConfig.AutoLockTimeoutMinutes, 15),
		LogLevel:               firstNonEmpty(m.projectConfig.LogLevel, m.userConfig.LogLevel, "info"),
		LogFile:                firstNonEmpty(m.projectConfig.LogFile, m.userConfig.LogFile, ""),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func defaultDaemonSocketDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "termihub")
	}
	return filepath.Join(os.TempDir(), "termihub")
}

// Get returns the merged configuration.
func (m *AppConfigManager) Get() *AppConfig {
	return m.merged
}

// SaveUserConfig writes the user-layer config to userConfigDir/config.yaml.
func (m *AppConfigManager) SaveUserConfig(userConfigDir string) error {
	return saveYAML(userConfigDir, "config.yaml", m.userConfig)
}

// SaveProjectConfig writes the project-layer config to
// projectDir/.termihub/config.yaml.
func (m *AppConfigManager) SaveProjectConfig(projectDir string) error {
	return saveYAML(filepath.Join(projectDir, ".termihub"), "config.yaml", m.projectConfig)
}

func saveYAML(dir, name string, v *AppConfig) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}
