package normalize

import "strings"

// BasePath cleans a URL base path for use as a rewrite prefix. The result
// always starts with "/" and never ends with one; the root path collapses to
// the empty string so that joining it with "/_asset" yields "/_asset".
func BasePath(path string) string {
	path = strings.TrimSpace(path)

	parts := strings.Split(path, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}

	if len(stack) == 0 {
		return ""
	}
	return "/" + strings.Join(stack, "/")
}

// IsRelativeAsset reports whether ref is a "./" or "../"-relative reference
// whose first real segment starts with prefix and carries at least one more
// character, the shape the rewrite rules can repair.
func IsRelativeAsset(ref, prefix string) bool {
	if prefix == "" {
		return false
	}
	rest, ok := StripRelative(ref)
	if !ok {
		return false
	}
	return len(rest) > len(prefix) && strings.HasPrefix(rest, prefix)
}

// StripRelative removes a leading "./" or any run of "../" segments.
func StripRelative(ref string) (string, bool) {
	if strings.HasPrefix(ref, "./") {
		return ref[2:], true
	}
	if !strings.HasPrefix(ref, "../") {
		return ref, false
	}
	for strings.HasPrefix(ref, "../") {
		ref = ref[3:]
	}
	return ref, true
}
