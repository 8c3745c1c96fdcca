package kvstore

// Match reports whether key matches a Redis-style glob pattern.
// Supported: '*' (any run), '?' (one byte), '[abc]', '[a-z]', '[^a]', and '\' escapes.
func Match(pattern, key string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if Match(pattern, key[i:]) {
					return true
				}
			}
			return false
		case '?':
			if key == "" {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		case '[':
			if key == "" {
				return false
			}
			rest, ok := matchClass(pattern[1:], key[0])
			if !ok {
				return false
			}
			pattern, key = rest, key[1:]
		case '\\':
			if len(pattern) > 1 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if key == "" || pattern[0] != key[0] {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		}
	}
	return key == ""
}

// matchClass matches c against a bracket class whose opening '[' was consumed.
// It returns the pattern after the closing ']'.
func matchClass(pattern string, c byte) (string, bool) {
	negate := false
	if len(pattern) > 0 && pattern[0] == '^' {
		negate = true
		pattern = pattern[1:]
	}
	matched := false
	for len(pattern) > 0 && pattern[0] != ']' {
		lo := pattern[0]
		if lo == '\\' && len(pattern) > 1 {
			pattern = pattern[1:]
			lo = pattern[0]
		}
		pattern = pattern[1:]
		hi := lo
		if len(pattern) > 1 && pattern[0] == '-' && pattern[1] != ']' {
			hi = pattern[1]
			pattern = pattern[2:]
		}
		if lo <= c && c <= hi {
			matched = true
		}
	}
	if len(pattern) > 0 {
		pattern = pattern[1:]
	}
	return pattern, matched != negate
}

// EscapeGlob quotes the glob metacharacters in s so it matches itself literally.
func EscapeGlob(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b = append(b, '\\')
		}
		b = append(b, s[i])
	}
	return string(b)
}
