package model

import (
	"fmt"

	"github.com/l3aro/go-undead/pkg/logic"
)

// NoParent is the parent index of top-level elements.
const NoParent = -1

// Element is a conditional block of a source file.
type Element struct {
	// Condition is the element's own guard.
	Condition logic.Formula
	// PresenceCondition is Condition conjoined with all enclosing guards.
	PresenceCondition logic.Formula
	StartLine         int
	EndLine           int
	Parent            int
	Children          []int
}

// SourceFile is a code-model file: a path and an arena of nested
// conditional elements. Elements refer to each other by arena index.
type SourceFile struct {
	Path     string
	elements []Element
	roots    []int
}

// NewSourceFile returns an empty file.
func NewSourceFile(path string) *SourceFile {
	return &SourceFile{Path: path}
}

// AddElement appends an element below parent (NoParent for a top-level
// element) and returns its index. The presence condition is derived here:
// a root's presence condition is its condition, a child's is
// And(condition, parent presence condition). It panics if parent does not
// refer to an existing element.
func (f *SourceFile) AddElement(parent int, cond logic.Formula, start, end int) int {
	if cond == nil {
		cond = logic.True
	}
	idx := len(f.elements)
	el := Element{
		Condition:         cond,
		PresenceCondition: cond,
		StartLine:         start,
		EndLine:           end,
		Parent:            parent,
	}
	if parent == NoParent {
		f.roots = append(f.roots, idx)
	} else {
		if parent < 0 || parent >= len(f.elements) {
			panic(fmt.Sprintf("model: parent index %d out of range [0,%d)", parent, len(f.elements)))
		}
		el.PresenceCondition = logic.NewAnd(cond, f.elements[parent].PresenceCondition)
		f.elements[parent].Children = append(f.elements[parent].Children, idx)
	}
	f.elements = append(f.elements, el)
	return idx
}

// Roots returns the indices of top-level elements in source order.
func (f *SourceFile) Roots() []int {
	return f.roots
}

// Element returns the element at index i. Callers must not modify it.
func (f *SourceFile) Element(i int) *Element {
	return &f.elements[i]
}

// Len returns the total number of elements, nested ones included.
func (f *SourceFile) Len() int {
	return len(f.elements)
}

// Walk visits all elements depth-first in pre-order.
func (f *SourceFile) Walk(fn func(i int, e *Element)) {
	var visit func(i int)
	visit = func(i int) {
		fn(i, &f.elements[i])
		for _, c := range f.elements[i].Children {
			visit(c)
		}
	}
	for _, r := range f.roots {
		visit(r)
	}
}

// Depth returns the nesting depth of element i; roots have depth 0.
func (f *SourceFile) Depth(i int) int {
	d := 0
	for p := f.elements[i].Parent; p != NoParent; p = f.elements[p].Parent {
		d++
	}
	return d
}

// Equal reports full structural equality: same path, same tree shape,
// canonically identical conditions and identical line ranges.
func (f *SourceFile) Equal(other *SourceFile) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Path != other.Path || len(f.roots) != len(other.roots) {
		return false
	}
	for i := range f.roots {
		if !f.equalAt(f.roots[i], other, other.roots[i]) {
			return false
		}
	}
	return true
}

func (f *SourceFile) equalAt(i int, other *SourceFile, j int) bool {
	a, b := &f.elements[i], &other.elements[j]
	if a.StartLine != b.StartLine || a.EndLine != b.EndLine {
		return false
	}
	if !logic.Equal(a.Condition, b.Condition) || len(a.Children) != len(b.Children) {
		return false
	}
	for k := range a.Children {
		if !f.equalAt(a.Children[k], other, b.Children[k]) {
			return false
		}
	}
	return true
}
