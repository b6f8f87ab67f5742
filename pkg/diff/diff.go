// Package diff decides whether two revisions of a source file differ in a
// way that requires re-running the dead-code check.
package diff

import (
	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/relevancy"
)

// Consideration selects which differences count.
type Consideration int

const (
	// AnyChange counts every structural difference, line shifts included.
	AnyChange Consideration = iota
	// AnyChangeExceptLineChange ignores differences in line numbers only.
	AnyChangeExceptLineChange
	// OnlyVariabilityChange compares only the block structure formed by
	// variability-relevant elements, ignoring line numbers.
	OnlyVariabilityChange
)

func (c Consideration) String() string {
	switch c {
	case AnyChange:
		return "any_change"
	case AnyChangeExceptLineChange:
		return "any_change_except_line_change"
	case OnlyVariabilityChange:
		return "only_variability_change"
	default:
		return "unknown"
	}
}

// Detector compares file revisions. It holds no mutable state and is safe
// for concurrent use.
type Detector struct {
	consideration Consideration
	filter        *relevancy.Filter
}

// New returns a Detector. filter is only used with OnlyVariabilityChange;
// nil selects a filter with the default prefix.
func New(consideration Consideration, filter *relevancy.Filter) *Detector {
	if filter == nil {
		filter = relevancy.New("")
	}
	return &Detector{consideration: consideration, filter: filter}
}

// Consideration returns the configured mode.
func (d *Detector) Consideration() Consideration {
	return d.consideration
}

// IsDifferent reports whether cur differs from prev under the configured
// consideration. A missing previous revision always counts as different.
func (d *Detector) IsDifferent(cur, prev *model.SourceFile) bool {
	if prev == nil || cur == nil {
		return true
	}
	switch d.consideration {
	case AnyChange:
		return !sameStructure(cur, prev, nil, nil, true)
	case AnyChangeExceptLineChange:
		return !sameStructure(cur, prev, nil, nil, false)
	default:
		return !sameStructure(cur, prev, d.RelevantElements(cur), d.RelevantElements(prev), false)
	}
}

// RelevantElements marks, by arena index, the elements that take part in
// the variability structure of file. The file is walked once in pre-order:
// an element below an element already marked is marked as well; otherwise
// an element whose presence condition passes the filter is marked together
// with all of its ancestors.
func (d *Detector) RelevantElements(file *model.SourceFile) []bool {
	relevant := make([]bool, file.Len())
	var path []int

	var visit func(i int)
	visit = func(i int) {
		e := file.Element(i)
		if anyMarked(relevant, path) {
			relevant[i] = true
		} else if d.filter.IsRelevant(e.PresenceCondition) {
			relevant[i] = true
			for _, p := range path {
				relevant[p] = true
			}
		}
		path = append(path, i)
		for _, c := range e.Children {
			visit(c)
		}
		path = path[:len(path)-1]
	}
	for _, r := range file.Roots() {
		visit(r)
	}
	return relevant
}

func anyMarked(relevant []bool, path []int) bool {
	for _, p := range path {
		if relevant[p] {
			return true
		}
	}
	return false
}

// selected returns the indices kept by the relevance mask, or all of them
// when mask is nil.
func selected(indices []int, mask []bool) []int {
	if mask == nil {
		return indices
	}
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if mask[i] {
			out = append(out, i)
		}
	}
	return out
}

// sameStructure compares the (masked) element trees position by position.
func sameStructure(a, b *model.SourceFile, maskA, maskB []bool, lines bool) bool {
	rootsA, rootsB := selected(a.Roots(), maskA), selected(b.Roots(), maskB)
	if len(rootsA) != len(rootsB) {
		return false
	}
	for k := range rootsA {
		if !sameElement(a, rootsA[k], b, rootsB[k], maskA, maskB, lines) {
			return false
		}
	}
	return true
}

func sameElement(a *model.SourceFile, i int, b *model.SourceFile, j int, maskA, maskB []bool, lines bool) bool {
	ea, eb := a.Element(i), b.Element(j)
	if !logic.Equal(ea.Condition, eb.Condition) {
		return false
	}
	if lines && (ea.StartLine != eb.StartLine || ea.EndLine != eb.EndLine) {
		return false
	}
	childrenA, childrenB := selected(ea.Children, maskA), selected(eb.Children, maskB)
	if len(childrenA) != len(childrenB) {
		return false
	}
	for k := range childrenA {
		if !sameElement(a, childrenA[k], b, childrenB[k], maskA, maskB, lines) {
			return false
		}
	}
	return true
}
