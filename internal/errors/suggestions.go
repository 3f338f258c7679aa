package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// Suggest returns fix suggestions for the errors jah commands surface to
// the user. Unknown errors get none.
func Suggest(err error) []ErrorSuggestion {
	var jahErr *JahError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLibraryNotFound):
		return libraryNotFound(err)
	case errors.Is(err, ErrConfigParse), errors.Is(err, ErrConfigInvalid):
		return configError(err)
	case errors.Is(err, ErrCopyFailure):
		return []ErrorSuggestion{{
			Title:       "Check the build directory",
			Description: "The build directory must be writable and must not sit inside a source tree",
			Command:     "jah build --build-dir dist",
		}}
	case errors.Is(err, syscall.EADDRINUSE):
		return addressInUse(err)
	case errors.As(err, &jahErr) && jahErr.Code == ErrCodeReadFailed:
		return []ErrorSuggestion{{
			Title:       "Point jah at the project config",
			Description: "Run jah from the project directory or pass the config file explicitly",
			Command:     "jah build --config path/to/jah.json",
		}}
	}

	return nil
}

func libraryNotFound(err error) []ErrorSuggestion {
	name := "<library>"
	var jahErr *JahError
	if errors.As(err, &jahErr) {
		if lib, ok := jahErr.Context["library"].(string); ok {
			name = lib
		}
	}

	suggestions := []ErrorSuggestion{
		{
			Title:       "Install the library",
			Description: fmt.Sprintf("Libraries are looked up under node_modules/%s of the project, ~/.node_modules and the install prefix", name),
			Command:     "npm install " + name,
		},
		{
			Title:       "Check the library name",
			Description: "The library's package.json must declare the same name as the libs entry, and the library must have a jah.json",
			Example:     fmt.Sprintf(`{"name": %q}`, name),
		},
	}
	if jahErr != nil {
		if searched, ok := jahErr.Context["searched"].(string); ok && searched != "" {
			suggestions = append(suggestions, ErrorSuggestion{
				Title:       "Searched locations",
				Description: searched,
			})
		}
	}

	return suggestions
}

func configError(err error) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{{
		Title:       "Check the config syntax",
		Description: "jah.json accepts comments, trailing commas and unquoted keys, but every value must still be well formed",
		Example:     `{output: "game", libs: ["cocos2d"], externalize: {"/levels/": "levels.js"}}`,
	}}
	if strings.Contains(err.Error(), "libs") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check the libs entries",
			Description: `Each libs entry is either a library name or an object {name: "/mount/"}`,
		})
	}

	return suggestions
}

func addressInUse(err error) []ErrorSuggestion {
	port := "4000"
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Addr != nil {
		if _, p, splitErr := net.SplitHostPort(opErr.Addr.String()); splitErr == nil {
			port = p
		}
	}

	return []ErrorSuggestion{
		{
			Title:       "Port already in use",
			Description: fmt.Sprintf("Port %s is already being used by another process", port),
			Command:     "lsof -i :" + port,
		},
		{
			Title:       "Use a different port",
			Description: "Start the server on a different port",
			Command:     "jah serve --port 4001",
		},
	}
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}
