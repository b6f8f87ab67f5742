package model

import "strings"

// ChangeFlag describes how a stored entity differs from the preceding revision.
type ChangeFlag uint8

// Change flags attached to variability models, build models and code files.
const (
	Addition ChangeFlag = 1 << iota
	Modification
	Deletion
	ExtractionChange
	AuxiliaryChange
)

var flagNames = []struct {
	flag ChangeFlag
	name string
}{
	{Addition, "ADDITION"},
	{Modification, "MODIFICATION"},
	{Deletion, "DELETION"},
	{ExtractionChange, "EXTRACTION_CHANGE"},
	{AuxiliaryChange, "AUXILIARY_CHANGE"},
}

func (f ChangeFlag) String() string {
	for _, fn := range flagNames {
		if fn.flag == f {
			return fn.name
		}
	}
	return "UNKNOWN"
}

// ParseChangeFlag resolves a flag from its upper-case name.
func ParseChangeFlag(name string) (ChangeFlag, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, fn := range flagNames {
		if fn.name == upper {
			return fn.flag, true
		}
	}
	return 0, false
}

// FlagSet is the set of change flags attached to one entity.
// The zero value is the empty set.
type FlagSet uint8

// NewFlagSet returns a set containing the given flags.
func NewFlagSet(flags ...ChangeFlag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s |= FlagSet(f)
	}
	return s
}

// Has reports whether f is in the set.
func (s FlagSet) Has(f ChangeFlag) bool {
	return s&FlagSet(f) != 0
}

// With returns a copy of the set with the given flags added.
func (s FlagSet) With(flags ...ChangeFlag) FlagSet {
	return s | NewFlagSet(flags...)
}

// Flags lists the members in declaration order.
func (s FlagSet) Flags() []ChangeFlag {
	var out []ChangeFlag
	for _, fn := range flagNames {
		if s.Has(fn.flag) {
			out = append(out, fn.flag)
		}
	}
	return out
}

// Any reports whether the set carries any flag at all.
func (s FlagSet) Any() bool {
	return s != 0
}

// Material reports whether the entity changed in a way that can affect
// satisfiability results: it carries an addition, modification or deletion
// and is not marked as an auxiliary change.
func (s FlagSet) Material() bool {
	if s.Has(AuxiliaryChange) {
		return false
	}
	return s.Has(Addition) || s.Has(Modification) || s.Has(Deletion)
}

// Extracted reports whether the entity was re-extracted in this revision.
func (s FlagSet) Extracted() bool {
	return s.Has(ExtractionChange)
}

func (s FlagSet) String() string {
	flags := s.Flags()
	if len(flags) == 0 {
		return "[]"
	}
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}
