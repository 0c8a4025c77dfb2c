package obs

import "strings"

// CanonicalPath collapses identifier segments so metric label cardinality
// stays bounded.
func CanonicalPath(raw string) string {
	path := raw
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if path == "" {
		return "/"
	}

	if rest, ok := strings.CutPrefix(path, "/v1/users/"); ok {
		parts := strings.SplitN(rest, "/", 2)
		if parts[0] != "" {
			if len(parts) == 1 {
				return "/v1/users/:addr"
			}
			return "/v1/users/:addr/" + parts[1]
		}
	}
	if rest, ok := strings.CutPrefix(path, "/v1/merchants/"); ok {
		if rest != "" && !strings.Contains(rest, "/") {
			return "/v1/merchants/:addr"
		}
	}
	return path
}
