package policy

import "strings"

// specificity reports how much of key r covers, or -1 when r does not
// match. Within one rule kind a larger value is the more specific rule:
// prefix "items:co1:search:" outranks "items:" for a search key, and a
// regex covering the whole key outranks one that matches a single
// segment.
func (r *rule) specificity(key string) int {
	switch r.kind {
	case kindExact:
		if key == r.pattern {
			return len(key)
		}
	case kindPrefix:
		if strings.HasPrefix(key, r.pattern) {
			return len(r.pattern)
		}
	case kindRegex:
		if loc := r.re.FindStringIndex(key); loc != nil {
			return loc[1] - loc[0]
		}
	}
	return -1
}
