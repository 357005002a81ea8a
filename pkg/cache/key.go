package cache

import "strings"

// Key is a hierarchical cache key. A key matches every key it is a prefix of,
// so invalidating ["desks"] reaches ["desks","list",...] and ["desks","detail","7"].
type Key []string

// With returns a new key with parts appended
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) k
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return strings.Join(k, "/")
}
