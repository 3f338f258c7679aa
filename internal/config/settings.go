package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/conneroisu/jah/internal/logging"
)

// Settings holds the command line and environment settings of one jah
// invocation. They are bound with viper from flags and JAH_* variables.
type Settings struct {
	ConfigFile string `mapstructure:"config"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	BuildDir   string `mapstructure:"build-dir"`
	Runtime    string `mapstructure:"runtime"`
	Watch      bool   `mapstructure:"watch"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`
}

// SetDefaults registers the setting defaults on the global viper instance.
func SetDefaults() {
	viper.SetDefault("config", FileName)
	viper.SetDefault("host", "127.0.0.1")
	viper.SetDefault("port", 4000)
	viper.SetDefault("build-dir", "build")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "text")
}

// LoadSettings reads the settings bound on the global viper instance.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, err
	}

	if s.ConfigFile == "" {
		s.ConfigFile = FileName
	}
	if s.BuildDir == "" {
		s.BuildDir = "build"
	}

	if err := validateSettings(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &s, nil
}

// ProjectDir returns the directory holding the project config file.
func (s *Settings) ProjectDir() (string, error) {
	file, err := filepath.Abs(s.ConfigFile)
	if err != nil {
		return "", err
	}

	return filepath.Dir(file), nil
}

// BuildPath returns the absolute build directory. Relative build
// directories are resolved against the project directory.
func (s *Settings) BuildPath() (string, error) {
	if filepath.IsAbs(s.BuildDir) {
		return s.BuildDir, nil
	}
	dir, err := s.ProjectDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, s.BuildDir), nil
}

// Logger builds the logger described by the log settings.
func (s *Settings) Logger() logging.Logger {
	level, _ := parseLogLevel(s.LogLevel)

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: s.LogFormat,
		Output: os.Stderr,
	})
}

func parseLogLevel(level string) (logging.LogLevel, error) {
	l, err := logging.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("log-level: %w", err)
	}

	return l, nil
}
