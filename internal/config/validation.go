package config

import (
	"fmt"
	"net"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// validateConfig rejects output locations that would escape the build
// directory and values of the wrong shape.
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.MainModule) == "" {
		return fmt.Errorf("mainModule cannot be empty")
	}

	if err := validateOutputPath("output", config.Output.Script); err != nil {
		return err
	}
	if err := validateOutputPath("assetPath", config.AssetPath); err != nil {
		return err
	}
	if err := validateOutputPath("mainFilename", config.MainFilename); err != nil {
		return err
	}

	for mount, bundle := range config.Externalize {
		if strings.TrimSpace(mount) == "" {
			return fmt.Errorf("externalize: empty mount path")
		}
		if err := validateOutputPath("externalize["+mount+"]", bundle); err != nil {
			return err
		}
	}

	for _, lib := range config.Libs {
		if strings.TrimSpace(lib.Name) == "" {
			return fmt.Errorf("libs: empty library name")
		}
	}

	return nil
}

// validateOutputPath checks a path that is joined onto the build directory.
func validateOutputPath(field, p string) error {
	if p == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	cleanPath := path.Clean(filepath.ToSlash(p))
	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return fmt.Errorf("%s contains path traversal: %s", field, p)
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%s should be a relative path: %s", field, p)
	}

	return nil
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// validateSettings validates the dev server and build settings.
func validateSettings(s *Settings) error {
	// 0 lets the system pick a port, which tests rely on
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", s.Port)
	}

	if s.Host != "" {
		if err := validateHostname(s.Host); err != nil {
			return fmt.Errorf("host %q: %w", s.Host, err)
		}
	}

	if s.BuildDir == "" {
		return fmt.Errorf("build directory cannot be empty")
	}

	if _, err := parseLogLevel(s.LogLevel); err != nil {
		return err
	}

	return nil
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
