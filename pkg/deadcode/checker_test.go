package deadcode

import (
	"fmt"
	"testing"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/metrics"
	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/relevancy"
	"github.com/l3aro/go-undead/pkg/sat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solversFor(t *testing.T, constraints ...string) sat.SolverFactory {
	t.Helper()
	var fs []logic.Formula
	for _, c := range constraints {
		fs = append(fs, logic.MustParse(c))
	}
	cnf, err := sat.NewCircuitConverter().Convert(logic.NewAnd(fs...))
	require.NoError(t, err)
	return sat.NewGiniFactory(cnf, 0)
}

func buildModel(t *testing.T, entries map[string]string) *model.BuildModel {
	t.Helper()
	var list []model.BuildEntry
	for path, pc := range entries {
		list = append(list, model.BuildEntry{Path: path, Condition: logic.MustParse(pc)})
	}
	bm, err := model.NewBuildModel(list)
	require.NoError(t, err)
	return bm
}

func newChecker(t *testing.T, cfg Config) *Checker {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestFindDeadBlocks_ConcreteScenario(t *testing.T) {
	bm := buildModel(t, map[string]string{"fileA.c": "true"})
	file := model.NewSourceFile("fileA.c")
	file.AddElement(model.NoParent, logic.MustParse("!X"), 3, 7)

	unconstrained := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t)})
	assert.Empty(t, unconstrained.FindDeadBlocks(file))

	forced := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t, "X")})
	blocks := forced.FindDeadBlocks(file)
	require.Len(t, blocks, 1)
	assert.Equal(t, "fileA.c", blocks[0].SourceFile())
	assert.Equal(t, 3, blocks[0].StartLine())
	assert.Equal(t, 7, blocks[0].EndLine())
	assert.Equal(t, "!X", blocks[0].PresenceCondition().String())
	assert.Equal(t, "true", blocks[0].FilePresenceCondition().String())
	assert.Equal(t, "fileA.c true 3 7 !X", blocks[0].String())
}

func TestFindDeadBlocks_ConjunctionWithFileCondition(t *testing.T) {
	// The element alone is satisfiable and so is the file condition, but
	// not both together.
	bm := buildModel(t, map[string]string{"net.c": "CONFIG_NET"})
	file := model.NewSourceFile("net.c")
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_USB"), 1, 4)

	c := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t, "!CONFIG_NET || !CONFIG_USB")})
	blocks := c.FindDeadBlocks(file)
	require.Len(t, blocks, 1)
	assert.Equal(t, "CONFIG_USB", blocks[0].PresenceCondition().String())
	assert.Equal(t, "CONFIG_NET", blocks[0].FilePresenceCondition().String())
}

func TestFindDeadBlocks_PreOrderAndNested(t *testing.T) {
	bm := buildModel(t, map[string]string{"a.c": "true"})
	file := model.NewSourceFile("a.c")
	outer := file.AddElement(model.NoParent, logic.MustParse("CONFIG_A"), 1, 20)
	file.AddElement(outer, logic.MustParse("!CONFIG_A"), 2, 5) // dead through its parent
	file.AddElement(outer, logic.MustParse("CONFIG_B"), 6, 10)
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_C"), 22, 30) // dead by constraint

	c := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t, "!CONFIG_C")})
	blocks := c.FindDeadBlocks(file)
	require.Len(t, blocks, 2)
	assert.Equal(t, 2, blocks[0].StartLine())
	assert.Equal(t, "!CONFIG_A && CONFIG_A", blocks[0].PresenceCondition().String())
	assert.Equal(t, 22, blocks[1].StartLine())
}

func TestFindDeadBlocks_NoBuildCondition(t *testing.T) {
	m := metrics.New()
	bm := buildModel(t, map[string]string{"other.c": "true"})
	file := model.NewSourceFile("orphan.c")
	file.AddElement(model.NoParent, logic.False, 1, 2)

	c := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t), Metrics: m})
	assert.Empty(t, c.FindDeadBlocks(file))
	assert.Equal(t, 1.0, counter(t, m, "undead_files_skipped_total"))
	assert.Equal(t, 0.0, counter(t, m, "undead_sat_queries_total"))
}

func TestFindDeadBlocks_RelevancyFilter(t *testing.T) {
	bm := buildModel(t, map[string]string{"f.c": "true"})
	file := model.NewSourceFile("f.c")
	debug := file.AddElement(model.NoParent, logic.MustParse("DEBUG && !DEBUG"), 1, 10)
	file.AddElement(debug, logic.MustParse("CONFIG_X"), 2, 4)
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_Y && !CONFIG_Y"), 12, 14)

	unfiltered := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t)})
	assert.Len(t, unfiltered.FindDeadBlocks(file), 3)

	// The irrelevant parent is not checked, its relevant child still is.
	filtered := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t), Filter: relevancy.New("CONFIG_")})
	blocks := filtered.FindDeadBlocks(file)
	require.Len(t, blocks, 2)
	assert.Equal(t, 2, blocks[0].StartLine())
	assert.Equal(t, 12, blocks[1].StartLine())
}

func TestFindDeadBlocks_Memoization(t *testing.T) {
	m := metrics.New()
	bm := buildModel(t, map[string]string{"m.c": "true"})
	file := model.NewSourceFile("m.c")
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_A"), 1, 2)
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_A"), 4, 5)
	file.AddElement(model.NoParent, logic.MustParse("CONFIG_B"), 7, 8)

	c := newChecker(t, Config{BuildModel: bm, Solvers: solversFor(t), Metrics: m})
	assert.Empty(t, c.FindDeadBlocks(file))
	assert.Empty(t, c.FindDeadBlocks(file))

	// the memo is per call, so every call queries both distinct conditions
	assert.Equal(t, 4.0, counter(t, m, "undead_sat_queries_total"))
	assert.Equal(t, 2.0, counter(t, m, "undead_sat_cache_hits_total"))
}

func counter(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			var sum float64
			for _, metric := range f.GetMetric() {
				sum += metric.GetCounter().GetValue()
			}
			return sum
		}
	}
	return 0
}

func TestFindDeadBlocks_BuildModelOptimization(t *testing.T) {
	prev := buildModel(t, map[string]string{"same.c": "CONFIG_A", "moved.c": "CONFIG_A", "fresh.c": "CONFIG_A"})
	cur := buildModel(t, map[string]string{"same.c": "CONFIG_A", "moved.c": "CONFIG_B", "fresh.c": "CONFIG_A"})
	flags := func(path string) model.FlagSet {
		if path == "fresh.c" {
			return model.NewFlagSet(model.ExtractionChange)
		}
		return model.NewFlagSet()
	}

	dead := func(path string) *model.SourceFile {
		f := model.NewSourceFile(path)
		f.AddElement(model.NoParent, logic.False, 1, 3)
		return f
	}

	tests := []struct {
		name      string
		cfg       Config
		path      string
		wantFound bool
	}{
		{"unchanged condition skipped", Config{BuildModelOptimization: true, BuildModelChanged: true, PreviousBuildModel: prev}, "same.c", false},
		{"changed condition checked", Config{BuildModelOptimization: true, BuildModelChanged: true, PreviousBuildModel: prev}, "moved.c", true},
		{"newly extracted checked", Config{BuildModelOptimization: true, BuildModelChanged: true, PreviousBuildModel: prev}, "fresh.c", true},
		{"variability change disables", Config{BuildModelOptimization: true, BuildModelChanged: true, VariabilityModelChanged: true, PreviousBuildModel: prev}, "same.c", true},
		{"optimization off", Config{BuildModelChanged: true, PreviousBuildModel: prev}, "same.c", true},
		{"no previous build model", Config{BuildModelOptimization: true, BuildModelChanged: true}, "same.c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.BuildModel = cur
			cfg.Solvers = solversFor(t)
			cfg.FileFlags = flags
			c := newChecker(t, cfg)
			assert.Equal(t, tt.wantFound, len(c.FindDeadBlocks(dead(tt.path))) > 0)
		})
	}
}

type failingConverter struct {
	fail string
	next sat.Converter
}

func (f failingConverter) Convert(formula logic.Formula) (sat.CNF, error) {
	if formula.String() == f.fail {
		return sat.CNF{}, fmt.Errorf("%w: refused", sat.ErrConversion)
	}
	return f.next.Convert(formula)
}

func TestFindDeadBlocks_ElementFailureIsLocal(t *testing.T) {
	m := metrics.New()
	bm := buildModel(t, map[string]string{"e.c": "true"})
	file := model.NewSourceFile("e.c")
	broken := file.AddElement(model.NoParent, logic.MustParse("BROKEN"), 1, 10)
	file.AddElement(broken, logic.False, 2, 3)
	file.AddElement(model.NoParent, logic.False, 12, 13)

	c := newChecker(t, Config{
		BuildModel: bm,
		Solvers:    solversFor(t),
		Converter:  failingConverter{fail: "BROKEN && true", next: sat.NewCircuitConverter()},
		Metrics:    m,
	})
	blocks := c.FindDeadBlocks(file)
	require.Len(t, blocks, 2)
	assert.Equal(t, 2, blocks[0].StartLine())
	assert.Equal(t, 12, blocks[1].StartLine())
	assert.Equal(t, 1.0, counter(t, m, "undead_element_failures_total"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Solvers: solversFor(t)})
	assert.Error(t, err)
	_, err = New(Config{BuildModel: buildModel(t, nil)})
	assert.Error(t, err)
}
