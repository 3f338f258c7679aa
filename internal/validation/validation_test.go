package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{"valid http URL", "http://localhost:8080", false},
		{"valid URL with path", "https://example.com/path/to/resource", false},
		{"javascript scheme", "javascript:alert('xss')", true},
		{"file scheme", "file:///etc/passwd", true},
		{"command injection", "http://localhost:4000;rm -rf /", true},
		{"no host", "http://", true},
		{"space", "http://localhost:4000/a b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"127.0.0.1:4000", "http://localhost:4000"}

	tests := []struct {
		name      string
		origin    string
		expectErr bool
	}{
		{"host match", "http://127.0.0.1:4000", false},
		{"full match", "http://localhost:4000", false},
		{"https host match", "https://127.0.0.1:4000", false},
		{"other port", "http://127.0.0.1:5000", true},
		{"other host", "http://evil.example", true},
		{"bad scheme", "ftp://127.0.0.1:4000", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, allowed)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalOrigins(t *testing.T) {
	assert.Equal(t, []string{"127.0.0.1:4000", "localhost:4000", "[::1]:4000"}, LocalOrigins("127.0.0.1", 4000))
	assert.Equal(t, []string{"127.0.0.1:80", "localhost:80", "[::1]:80", "0.0.0.0:80"}, LocalOrigins("0.0.0.0", 80))
	assert.Equal(t, []string{"game.test:4000"}, LocalOrigins("game.test", 4000))
	assert.Equal(t, []string{"[fe80::1]:4000"}, LocalOrigins("fe80::1", 4000))
}

func TestValidateRequestPath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		expectErr bool
	}{
		{"module", "/__jah__/modules/main.js", false},
		{"dotted name", "/public/app..min.js", false},
		{"traversal", "/public/../jah.json", true},
		{"trailing traversal", "/public/..", true},
		{"backslash", "/public/..\\jah.json", true},
		{"nul", "/public/a\x00b", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequestPath(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
