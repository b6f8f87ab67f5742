package model

import (
	"fmt"

	"github.com/l3aro/go-undead/pkg/logic"
)

// BuildModel maps source file paths to the condition under which the file
// is compiled at all. Insertion order is preserved.
type BuildModel struct {
	paths []string
	pcs   map[string]logic.Formula
}

// BuildEntry is one path/condition pair of a build model.
type BuildEntry struct {
	Path      string
	Condition logic.Formula
}

// NewBuildModel builds a model from the given entries.
func NewBuildModel(entries []BuildEntry) (*BuildModel, error) {
	bm := &BuildModel{pcs: make(map[string]logic.Formula, len(entries))}
	for _, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("build model entry without path")
		}
		if e.Condition == nil {
			return nil, fmt.Errorf("build model entry %q without condition", e.Path)
		}
		if _, dup := bm.pcs[e.Path]; dup {
			return nil, fmt.Errorf("duplicate build model entry %q", e.Path)
		}
		bm.paths = append(bm.paths, e.Path)
		bm.pcs[e.Path] = e.Condition
	}
	return bm, nil
}

// PresenceCondition returns the build condition of path.
func (m *BuildModel) PresenceCondition(path string) (logic.Formula, bool) {
	if m == nil {
		return nil, false
	}
	pc, ok := m.pcs[path]
	return pc, ok
}

// Paths returns the paths in insertion order.
func (m *BuildModel) Paths() []string {
	return append([]string(nil), m.paths...)
}

// Entries returns all entries in insertion order.
func (m *BuildModel) Entries() []BuildEntry {
	out := make([]BuildEntry, len(m.paths))
	for i, p := range m.paths {
		out[i] = BuildEntry{Path: p, Condition: m.pcs[p]}
	}
	return out
}

// Len returns the number of entries.
func (m *BuildModel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.paths)
}

// Equal reports whether both models map the same paths to canonically
// identical conditions. Order is not significant.
func (m *BuildModel) Equal(other *BuildModel) bool {
	return m.compare(other, func(a, b logic.Formula) bool { return logic.Equal(a, b) })
}

// SemanticallyEqual is like Equal but compares simplified conditions, so
// that e.g. "A && true" equals "A".
func (m *BuildModel) SemanticallyEqual(other *BuildModel) bool {
	return m.compare(other, func(a, b logic.Formula) bool {
		return logic.Equal(logic.Simplify(a), logic.Simplify(b))
	})
}

func (m *BuildModel) compare(other *BuildModel, eq func(a, b logic.Formula) bool) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.paths) != len(other.paths) {
		return false
	}
	for path, pc := range m.pcs {
		opc, ok := other.pcs[path]
		if !ok || !eq(pc, opc) {
			return false
		}
	}
	return true
}
