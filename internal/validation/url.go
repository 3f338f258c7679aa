// Package validation checks the untrusted input the dev server handles:
// request paths, websocket origins and the URL handed to the browser.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ValidateURL validates the URL opened in the browser on serve --open.
// It only accepts http(s) URLs without shell metacharacters.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	dangerous := []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", " "}
	for _, char := range dangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %q", char)
		}
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// ValidateOrigin validates a websocket Origin header against the allowed
// origins. An allowed entry matches the full origin or its host:port.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// LocalOrigins lists the host:port forms a browser uses to reach a server
// bound to host and port. Wildcard binds add the loopback names.
func LocalOrigins(host string, port int) []string {
	p := strconv.Itoa(port)
	hosts := []string{host}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "127.0.0.1" || host == "localhost" {
		hosts = []string{"127.0.0.1", "localhost", "[::1]"}
		if host != "" && host != "127.0.0.1" && host != "localhost" {
			hosts = append(hosts, host)
		}
	}

	origins := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if strings.Contains(h, ":") && !strings.HasPrefix(h, "[") {
			origins = append(origins, net.JoinHostPort(h, p))
			continue
		}
		origins = append(origins, h+":"+p)
	}

	return origins
}
