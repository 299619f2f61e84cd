// Package pattern matches event names against configured patterns.
//
//   - Exact (no prefix): case-insensitive, "AddUserRequest"
//   - Wildcard (*): case-insensitive, "*Password*" or "Impersonate*"
//   - Regexp (~): case-sensitive, "~^(Add|Update)User"
//   - Regexp (~*): case-insensitive, "~*serviceticket.*response$"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType defines the type of pattern matching
type PatternType int

const (
	PatternTypeWildcard PatternType = iota
	PatternTypeRegexp
	PatternTypeExact
)

// Pattern is a compiled pattern ready for matching
type Pattern struct {
	Original string
	Type     PatternType
	clean    string
	re       *regexp.Regexp
}

// DetectPatternType returns the pattern type, the pattern without its prefix
// and whether a regexp is case-insensitive
func DetectPatternType(pattern string) (PatternType, string, bool) {
	switch {
	case strings.HasPrefix(pattern, "~*"):
		return PatternTypeRegexp, pattern[2:], true
	case strings.HasPrefix(pattern, "~"):
		return PatternTypeRegexp, pattern[1:], false
	case strings.Contains(pattern, "*"):
		return PatternTypeWildcard, pattern, false
	default:
		return PatternTypeExact, pattern, false
	}
}

// Compile parses pattern once, at configuration time
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	patternType, clean, caseInsensitive := DetectPatternType(pattern)
	p := &Pattern{
		Original: pattern,
		Type:     patternType,
		clean:    clean,
	}

	switch patternType {
	case PatternTypeRegexp:
		expr := clean
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", pattern, err)
		}
		p.re = re
	case PatternTypeWildcard:
		p.clean = strings.ToLower(clean)
	}

	return p, nil
}

// Match tests if name matches the compiled pattern
func (p *Pattern) Match(name string) bool {
	if p == nil {
		return false
	}

	switch p.Type {
	case PatternTypeRegexp:
		return p.re.MatchString(name)
	case PatternTypeWildcard:
		return MatchWildcard(strings.ToLower(name), p.clean)
	default:
		return strings.EqualFold(name, p.clean)
	}
}

// MatchWildcard matches text against a pattern where * stands for any run of
// characters, including none. The comparison is case-sensitive.
func MatchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(text, last) {
		return false
	}
	text = text[:len(text)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(text, part)
		if idx == -1 {
			return false
		}
		text = text[idx+len(part):]
	}

	return true
}

// Set is a list of compiled patterns
type Set []*Pattern

// CompileAll compiles every pattern, reporting the first invalid one
func CompileAll(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, raw := range patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchAny reports whether any pattern in the set matches name
func (s Set) MatchAny(name string) bool {
	for _, p := range s {
		if p.Match(name) {
			return true
		}
	}
	return false
}
