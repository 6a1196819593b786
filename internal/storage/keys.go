package storage

import (
	"fmt"
	"path"
	"strings"
)

// validateKey rejects keys that could escape the store's namespace.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) || path.Clean(key) != key || key == "." ||
		strings.HasPrefix(key, "../") || key == ".." {
		return fmt.Errorf("invalid object key: %q", key)
	}
	return nil
}

func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
