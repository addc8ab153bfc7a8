// Package policy maps deduplication keys to per-group defaults. Callers use
// it to give, for example, all "search:" keys a short debounce window and
// all "items:" keys a longer cache lifetime without repeating options at
// every call site.
package policy

import (
	"regexp"
	"time"
)

// Policy holds the deduplication defaults applied to every key in a group.
// Zero durations inherit the deduplicator-wide defaults.
type Policy struct {
	DebounceTime time.Duration
	CacheTime    time.Duration
	SkipCache    bool
}

type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

type rule struct {
	kind    matchKind
	pattern string
	re      *regexp.Regexp
}

// GroupBuilder constructs a key group with one or more matching rules and a
// policy.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new key group with the given name. The name
// labels metrics and trace events for every key the group matches.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Name returns the group name.
func (g *GroupBuilder) Name() string { return g.name }

// Exact matches the key verbatim.
func (g *GroupBuilder) Exact(key string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: key})
	return g
}

// Prefix matches keys starting with prefix, e.g. "items:".
func (g *GroupBuilder) Prefix(prefix string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: prefix})
	return g
}

// Regex matches keys against pattern. It panics on an invalid pattern; use
// CompileRegex when the pattern comes from configuration.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// CompileRegex is the non-panicking form of Regex.
func (g *GroupBuilder) CompileRegex(pattern string) (*GroupBuilder, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: re})
	return g, nil
}

// Policy attaches p to the group.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}
