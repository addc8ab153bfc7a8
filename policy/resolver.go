package policy

// Resolver resolves a key to the best-matching group. A nil *Resolver
// matches nothing.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied groups.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for key.
//
// Exact rules beat prefix rules, which beat regex rules. Among rules of the
// same kind the longer match wins, and on a full tie the group registered
// first wins. A group without a policy still matches and returns a nil
// policy so that its name can label events.
func (res *Resolver) Resolve(key string) (group string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}
	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		for i := range g.rules {
			r := &g.rules[i]
			n := r.specificity(key)
			if n < 0 {
				continue
			}
			if bestKind < 0 || r.kind < bestKind || (r.kind == bestKind && n > bestLen) {
				bestKind = r.kind
				bestLen = n
				group = g.name
				pol = g.policy
				ok = true
			}
		}
	}
	return group, pol, ok
}
