package tier

import "strings"

// Match checks whether a request path matches a glob-style pattern.
//
// Supported patterns:
//   - "/api/v1/users/*" matches everything under that prefix
//   - "/api/*/export" matches one wildcard segment mid-pattern
//   - "/api/v1/health" exact match
func Match(pattern, path string) bool {
	path = strings.TrimRight(path, "/")
	pattern = strings.TrimRight(pattern, "/")

	// Fast path: exact match.
	if pattern == path {
		return true
	}

	// Trailing /* means match everything under that prefix.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	return wildcardMatch(pattern, path)
}

// wildcardMatch handles * as matching any non-empty sequence of characters.
func wildcardMatch(pattern, str string) bool {
	if pattern == "*" {
		return true
	}

	for len(pattern) > 0 {
		if pattern[0] == '*' {
			// Skip the star.
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}
			// Try matching the rest of the pattern at every position.
			for i := 0; i <= len(str); i++ {
				if wildcardMatch(pattern, str[i:]) {
					return true
				}
			}
			return false
		}

		if len(str) == 0 || pattern[0] != str[0] {
			return false
		}

		pattern = pattern[1:]
		str = str[1:]
	}

	return len(str) == 0
}
