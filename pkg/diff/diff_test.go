package diff

import (
	"testing"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/relevancy"
	"github.com/stretchr/testify/assert"
)

// node describes an element tree for test fixtures.
type node struct {
	cond     string
	start    int
	end      int
	children []node
}

func build(path string, roots ...node) *model.SourceFile {
	f := model.NewSourceFile(path)
	var add func(parent int, n node)
	add = func(parent int, n node) {
		idx := f.AddElement(parent, logic.MustParse(n.cond), n.start, n.end)
		for _, c := range n.children {
			add(idx, c)
		}
	}
	for _, r := range roots {
		add(model.NoParent, r)
	}
	return f
}

func TestRelevantElements(t *testing.T) {
	// 0 DEBUG
	// 1   CONFIG_A     directly relevant, marks 0
	// 2     TRACE      below a marked element
	// 3   VERBOSE      parent 0 is marked by now
	// 4 HAVE_X         unrelated root
	// 5   HAVE_Y
	f := build("r.c",
		node{cond: "DEBUG", start: 1, end: 20, children: []node{
			{cond: "CONFIG_A", start: 2, end: 10, children: []node{
				{cond: "TRACE", start: 3, end: 5},
			}},
			{cond: "VERBOSE", start: 11, end: 19},
		}},
		node{cond: "HAVE_X", start: 22, end: 30, children: []node{
			{cond: "HAVE_Y", start: 23, end: 29},
		}},
	)

	d := New(OnlyVariabilityChange, relevancy.New("CONFIG_"))
	assert.Equal(t, []bool{true, true, true, true, false, false}, d.RelevantElements(f))
}

func TestRelevantElements_InheritedPresenceCondition(t *testing.T) {
	// children of a directly relevant element are relevant through their
	// presence condition as well
	f := build("i.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "DEBUG", start: 2, end: 3},
		}},
	)
	d := New(OnlyVariabilityChange, nil)
	assert.Equal(t, []bool{true, true}, d.RelevantElements(f))
}

func TestDetector_IsDifferent(t *testing.T) {
	base := build("f.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "CONFIG_B", start: 2, end: 5},
		}},
		node{cond: "DEBUG", start: 12, end: 14},
	)
	shifted := build("f.c",
		node{cond: "CONFIG_A", start: 3, end: 12, children: []node{
			{cond: "CONFIG_B", start: 4, end: 7},
		}},
		node{cond: "DEBUG", start: 14, end: 16},
	)
	debugChanged := build("f.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "CONFIG_B", start: 2, end: 5},
		}},
		node{cond: "TRACE", start: 12, end: 14},
	)
	debugAdded := build("f.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "CONFIG_B", start: 2, end: 5},
		}},
		node{cond: "DEBUG", start: 12, end: 14},
		node{cond: "TRACE", start: 16, end: 18},
	)
	configChanged := build("f.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "CONFIG_C", start: 2, end: 5},
		}},
		node{cond: "DEBUG", start: 12, end: 14},
	)
	configNested := build("f.c",
		node{cond: "CONFIG_A", start: 1, end: 10, children: []node{
			{cond: "CONFIG_B", start: 2, end: 5, children: []node{
				{cond: "CONFIG_D", start: 3, end: 4},
			}},
		}},
		node{cond: "DEBUG", start: 12, end: 14},
	)

	tests := []struct {
		name string
		cur  *model.SourceFile
		prev *model.SourceFile
		want map[Consideration]bool
	}{
		{"identical", base, base, map[Consideration]bool{
			AnyChange: false, AnyChangeExceptLineChange: false, OnlyVariabilityChange: false,
		}},
		{"line shift", shifted, base, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: false, OnlyVariabilityChange: false,
		}},
		{"irrelevant condition changed", debugChanged, base, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: true, OnlyVariabilityChange: false,
		}},
		{"irrelevant block added", debugAdded, base, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: true, OnlyVariabilityChange: false,
		}},
		{"relevant condition changed", configChanged, base, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: true, OnlyVariabilityChange: true,
		}},
		{"relevant block nested", configNested, base, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: true, OnlyVariabilityChange: true,
		}},
		{"no previous revision", base, nil, map[Consideration]bool{
			AnyChange: true, AnyChangeExceptLineChange: true, OnlyVariabilityChange: true,
		}},
	}

	for _, tt := range tests {
		for c, want := range tt.want {
			t.Run(tt.name+"/"+c.String(), func(t *testing.T) {
				d := New(c, relevancy.New("CONFIG_"))
				assert.Equal(t, want, d.IsDifferent(tt.cur, tt.prev))
			})
		}
	}
}

func TestDetector_NoRelevantElements(t *testing.T) {
	a := build("n.c", node{cond: "DEBUG", start: 1, end: 3})
	b := build("n.c", node{cond: "TRACE", start: 1, end: 3}, node{cond: "X", start: 5, end: 6})

	d := New(OnlyVariabilityChange, nil)
	assert.False(t, d.IsDifferent(a, b))
	assert.False(t, d.IsDifferent(model.NewSourceFile("n.c"), model.NewSourceFile("n.c")))
}

func TestDetector_RelevantRootCountDiffers(t *testing.T) {
	a := build("c.c", node{cond: "CONFIG_A", start: 1, end: 3})
	b := build("c.c", node{cond: "CONFIG_A", start: 1, end: 3}, node{cond: "CONFIG_B", start: 5, end: 6})

	d := New(OnlyVariabilityChange, nil)
	assert.True(t, d.IsDifferent(a, b))
	assert.True(t, d.IsDifferent(b, a))
}
