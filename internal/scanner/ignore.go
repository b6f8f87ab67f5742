package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is one gitignore-style line of an ignore file.
type IgnorePattern struct {
	raw      string
	negation bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string. A pattern
// containing a slash other than a trailing one is anchored to the
// directory of the ignore file.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		p.anchored = true
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation returns true if this pattern re-includes matching paths.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

// Match reports whether rel (slash separated, relative to the ignore file)
// is matched. A match on a directory also covers everything below it.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	accept := func(consumed int) bool {
		if !p.dirOnly {
			return true
		}
		return consumed < len(parts) || isDir
	}

	if p.anchored {
		return matchPrefix(p.segments, parts, 0, accept)
	}
	for start := 0; start < len(parts); start++ {
		if matchPrefix(p.segments, parts[start:], start, accept) {
			return true
		}
	}
	return false
}

// matchPrefix matches pattern segments against a prefix of parts. offset
// is the number of path segments consumed before parts.
func matchPrefix(segs, parts []string, offset int, accept func(int) bool) bool {
	if len(segs) == 0 {
		return accept(offset)
	}
	if segs[0] == "**" {
		for skip := 0; skip <= len(parts); skip++ {
			if matchPrefix(segs[1:], parts[skip:], offset+skip, accept) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if ok, err := path.Match(segs[0], parts[0]); err != nil || !ok {
		return false
	}
	return matchPrefix(segs[1:], parts[1:], offset+1, accept)
}
