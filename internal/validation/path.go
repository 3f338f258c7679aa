package validation

import (
	"fmt"
	"strings"
)

// ValidateRequestPath rejects request paths that could step outside the
// mounted trees. p is the already unescaped URL path.
func ValidateRequestPath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path contains a backslash: %s", p)
	}

	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected: %s", p)
		}
	}

	return nil
}
