// Package relevancy decides whether a condition is driven by the
// variability model, i.e. references a variable under its naming convention.
package relevancy

import (
	"strings"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
)

// DefaultPrefix is the naming convention of Kconfig-controlled variables.
const DefaultPrefix = "CONFIG_"

// Filter accepts conditions that reference at least one variable whose
// name starts with the configured prefix. A Filter is immutable and safe
// for concurrent use.
type Filter struct {
	prefix string
}

// New returns a Filter for prefix. An empty prefix selects DefaultPrefix.
func New(prefix string) *Filter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Filter{prefix: prefix}
}

// Prefix returns the configured variable prefix.
func (f *Filter) Prefix() string {
	return f.prefix
}

// IsRelevant reports whether cond references a variability variable.
// Variables are whole identifier tokens, so MY_CONFIG_X does not match
// the prefix CONFIG_.
func (f *Filter) IsRelevant(cond logic.Formula) bool {
	if cond == nil {
		return false
	}
	return logic.AnyVariable(cond, f.matches)
}

func (f *Filter) matches(name string) bool {
	return strings.HasPrefix(name, f.prefix)
}

// View is a read-only, childless projection of one relevant element.
type View struct {
	Index             int
	Depth             int
	Condition         logic.Formula
	PresenceCondition logic.Formula
	StartLine         int
	EndLine           int
}

// Project lists, in pre-order, the elements of file whose own condition is
// relevant. Nesting is flattened; Depth records the original level.
func (f *Filter) Project(file *model.SourceFile) []View {
	var views []View
	file.Walk(func(i int, e *model.Element) {
		if !f.IsRelevant(e.Condition) {
			return
		}
		views = append(views, View{
			Index:             i,
			Depth:             file.Depth(i),
			Condition:         e.Condition,
			PresenceCondition: e.PresenceCondition,
			StartLine:         e.StartLine,
			EndLine:           e.EndLine,
		})
	})
	return views
}
