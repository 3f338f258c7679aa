// Package errors defines the error taxonomy shared by the config loader,
// library locator, mount resolver, bundler and dev server.
//
// Fatal errors (config parse, missing library, copy failure) abort a build
// before or while writing output. ErrMountNotFound is the one non-fatal
// kind: callers decide whether to skip (bundler) or answer 404 (server).
package errors

import (
	"strings"
)

// Sentinels for errors.Is. Comparison uses Type and Code only, so any
// error built by the constructors below matches its sentinel.
var (
	ErrConfigParse     = &JahError{Type: ErrorTypeConfig, Code: ErrCodeConfigParse}
	ErrConfigInvalid   = &JahError{Type: ErrorTypeConfig, Code: ErrCodeConfigInvalid}
	ErrLibraryNotFound = &JahError{Type: ErrorTypeLibrary, Code: ErrCodeLibraryNotFound}
	ErrMountNotFound   = &JahError{Type: ErrorTypeNotFound, Code: ErrCodeMountNotFound}
	ErrCopyFailure     = &JahError{Type: ErrorTypeIO, Code: ErrCodeCopyFailed}
)

// NewConfigParseError reports a config file that is still malformed after
// lenient parsing.
func NewConfigParseError(path string, cause error) *JahError {
	return &JahError{
		Type:     ErrorTypeConfig,
		Code:     ErrCodeConfigParse,
		Message:  "unable to parse config",
		Cause:    cause,
		FilePath: path,
	}
}

// NewConfigInvalidError reports a config that parsed but holds values of
// the wrong shape.
func NewConfigInvalidError(path, message string, cause error) *JahError {
	return &JahError{
		Type:     ErrorTypeConfig,
		Code:     ErrCodeConfigInvalid,
		Message:  message,
		Cause:    cause,
		FilePath: path,
	}
}

// NewLibraryNotFoundError reports a declared library that none of the
// search locations could satisfy.
func NewLibraryNotFoundError(name string, searched []string) *JahError {
	e := &JahError{
		Type:    ErrorTypeLibrary,
		Code:    ErrCodeLibraryNotFound,
		Message: "unable to find location of library: " + name,
	}
	if len(searched) > 0 {
		e.WithContext("searched", strings.Join(searched, ", "))
	}

	return e.WithContext("library", name)
}

// NewMountNotFoundError reports a virtual path that resolves to nothing.
func NewMountNotFoundError(virtualPath string) *JahError {
	return &JahError{
		Type:        ErrorTypeNotFound,
		Code:        ErrCodeMountNotFound,
		Message:     "no file mounted at " + virtualPath,
		Recoverable: true,
	}
}

// NewCopyError reports a failed asset or public file copy.
func NewCopyError(src, dst string, cause error) *JahError {
	return &JahError{
		Type:    ErrorTypeIO,
		Code:    ErrCodeCopyFailed,
		Message: "copy " + src + " => " + dst + " failed",
		Cause:   cause,
	}
}
