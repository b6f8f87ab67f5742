// Package policy decides how much of the code model a run has to examine.
package policy

import "github.com/l3aro/go-undead/pkg/model"

// Scope is the set of code-model files a run reads.
type Scope int

const (
	// Full examines the entire current code model.
	Full Scope = iota
	// Partial examines only files flagged ExtractionChange.
	Partial
)

func (s Scope) String() string {
	if s == Partial {
		return "partial"
	}
	return "full"
}

// Decision is the outcome of the policy for one run.
type Decision struct {
	Scope                   Scope
	BuildModelChanged       bool
	VariabilityModelChanged bool
	// ReduceCodeModel enables pruning by the structural difference
	// detector. It is only set when neither model changed materially.
	ReduceCodeModel bool
}

// DecideScope returns Full when either model carries a material change
// (addition, modification or deletion that is not solely auxiliary).
func DecideScope(bmFlags, vmFlags model.FlagSet) Scope {
	if bmFlags.Material() || vmFlags.Material() {
		return Full
	}
	return Partial
}

// Decide applies the scope rule and the code-model optimization switch.
func Decide(bmFlags, vmFlags model.FlagSet, codeModelOptimization bool) Decision {
	bm, vm := bmFlags.Material(), vmFlags.Material()
	return Decision{
		Scope:                   DecideScope(bmFlags, vmFlags),
		BuildModelChanged:       bm,
		VariabilityModelChanged: vm,
		ReduceCodeModel:         codeModelOptimization && !bm && !vm,
	}
}
