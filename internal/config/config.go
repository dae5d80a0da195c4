package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	Web      WebConfig      `yaml:"web,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// PipelineConfig configures prompt assembly inputs and the audit trail.
type PipelineConfig struct {
	// RootDir anchors all relative paths below. Default: executable dir.
	RootDir string `yaml:"root_dir,omitempty"`
	// PresetsDir holds preset JSON files, one per preset name.
	PresetsDir string `yaml:"presets_dir,omitempty"`
	// SQLitePath is the channel/history/macro database.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// DefaultFormat is used when a build request does not name one.
	DefaultFormat string `yaml:"default_format,omitempty"`
	// DefaultViewpoint is used when a build request does not name one.
	DefaultViewpoint string `yaml:"default_viewpoint,omitempty"`
	// MaxHistory caps how many chat messages feed a build.
	MaxHistory int `yaml:"max_history,omitempty"`

	AuditEnabled       bool   `yaml:"audit_enabled,omitempty"`
	AuditDir           string `yaml:"audit_dir,omitempty"`
	AuditRetentionDays int    `yaml:"audit_retention_days,omitempty"`
	AuditFilePrefix    string `yaml:"audit_file_prefix,omitempty"`
}

type WebConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Pipeline: PipelineConfig{
			PresetsDir:         "presets",
			SQLitePath:         ".fable.db",
			DefaultFormat:      "openai",
			DefaultViewpoint:   "model",
			MaxHistory:         200,
			AuditDir:           ".fable/audit",
			AuditRetentionDays: 7,
			AuditFilePrefix:    "build",
		},
		Web: WebConfig{
			Listen: "127.0.0.1:8790",
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".fable")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".fable.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
