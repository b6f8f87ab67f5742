// Package deadcode finds conditional blocks that no valid configuration of
// the variability model can ever compile.
package deadcode

import (
	"errors"
	"fmt"
	"time"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/metrics"
	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/relevancy"
	"github.com/l3aro/go-undead/pkg/sat"
)

// Failure stages reported on metrics and logs.
const (
	StageConvert = "convert"
	StageSolve   = "solve"
)

// Config holds the read-only inputs of a Checker.
type Config struct {
	BuildModel *model.BuildModel
	// PreviousBuildModel enables the build-model optimization together
	// with BuildModelOptimization. nil disables it.
	PreviousBuildModel *model.BuildModel
	// Filter restricts checks to variability-relevant elements. nil checks
	// every element.
	Filter *relevancy.Filter
	// Solvers creates one solver per FindDeadBlocks call; each solver
	// carries the variability-model constraints.
	Solvers   sat.SolverFactory
	Converter sat.Converter

	BuildModelOptimization  bool
	BuildModelChanged       bool
	VariabilityModelChanged bool
	// FileFlags returns the change flags of a code file. nil means no flags.
	FileFlags func(path string) model.FlagSet

	Logger  log.Logger
	Metrics *metrics.Metrics
}

// Checker is safe for concurrent use with distinct source files. It keeps
// no state across calls.
type Checker struct {
	cfg Config
	log log.Logger
}

// New validates cfg and returns a Checker.
func New(cfg Config) (*Checker, error) {
	if cfg.BuildModel == nil {
		return nil, errors.New("deadcode: build model is required")
	}
	if cfg.Solvers == nil {
		return nil, errors.New("deadcode: solver factory is required")
	}
	if cfg.Converter == nil {
		cfg.Converter = sat.NewCircuitConverter()
	}
	return &Checker{cfg: cfg, log: log.OrDefault(cfg.Logger)}, nil
}

// run is the state of one FindDeadBlocks call.
type run struct {
	file   *model.SourceFile
	filePC logic.Formula
	solver sat.Solver
	memo   map[string]bool
	blocks []model.DeadCodeBlock
}

// FindDeadBlocks returns the dead blocks of file in pre-order.
func (c *Checker) FindDeadBlocks(file *model.SourceFile) []model.DeadCodeBlock {
	filePC, ok := c.cfg.BuildModel.PresenceCondition(file.Path)
	if !ok {
		c.log.Info("skipping file without build presence condition", "file", file.Path)
		c.cfg.Metrics.FileSkipped(metrics.ReasonNoBuildCondition)
		return nil
	}
	if c.buildConditionUnchanged(file.Path, filePC) {
		c.log.Info("skipping file, build presence condition unchanged", "file", file.Path)
		c.cfg.Metrics.FileSkipped(metrics.ReasonBuildUnchanged)
		return nil
	}

	start := time.Now()
	c.log.Debug("checking file", "file", file.Path, "pc", filePC.String())

	r := &run{file: file, filePC: filePC}
	file.Walk(func(_ int, e *model.Element) {
		c.check(r, e)
	})

	c.cfg.Metrics.FileAnalyzed(time.Since(start))
	return r.blocks
}

// buildConditionUnchanged reports whether the file can be skipped because
// only the build model changed and this file's entry in it did not. Newly
// extracted files are always checked.
func (c *Checker) buildConditionUnchanged(path string, filePC logic.Formula) bool {
	if !c.cfg.BuildModelOptimization || c.cfg.PreviousBuildModel == nil {
		return false
	}
	if !c.cfg.BuildModelChanged || c.cfg.VariabilityModelChanged {
		return false
	}
	if c.cfg.FileFlags != nil && c.cfg.FileFlags(path).Has(model.ExtractionChange) {
		return false
	}
	prev, ok := c.cfg.PreviousBuildModel.PresenceCondition(path)
	return ok && logic.Equal(filePC, prev)
}

func (c *Checker) check(r *run, e *model.Element) {
	if c.cfg.Filter != nil && !c.cfg.Filter.IsRelevant(e.PresenceCondition) {
		return
	}
	candidate := logic.NewAnd(e.PresenceCondition, r.filePC)

	satisfiable, err := c.isSatisfiable(r, candidate)
	if err != nil {
		stage := StageSolve
		if errors.Is(err, sat.ErrConversion) {
			stage = StageConvert
		}
		c.log.Error("excluding element after check failure",
			"file", r.file.Path, "line", e.StartLine, "stage", stage, "error", err)
		c.cfg.Metrics.ElementFailure(stage)
		return
	}
	if satisfiable {
		return
	}

	block := model.NewDeadCodeBlock(r.file.Path, r.filePC, e.StartLine, e.EndLine, e.PresenceCondition)
	c.log.Info("found dead block", "block", block.String())
	c.cfg.Metrics.DeadBlock()
	r.blocks = append(r.blocks, block)
}

func (c *Checker) isSatisfiable(r *run, f logic.Formula) (bool, error) {
	key := f.String()
	if v, ok := r.memo[key]; ok {
		c.cfg.Metrics.SATCacheHit()
		return v, nil
	}

	cnf, err := c.cfg.Converter.Convert(f)
	if err != nil {
		return false, fmt.Errorf("convert %s: %w", key, err)
	}
	c.log.Debug("candidate cnf", "pc", key, "cnf", cnf.String())

	if r.solver == nil {
		s, err := c.cfg.Solvers.NewSolver()
		if err != nil {
			return false, fmt.Errorf("create solver: %w", err)
		}
		r.solver = s
		r.memo = make(map[string]bool)
	}

	c.cfg.Metrics.SATQuery()
	v, err := r.solver.IsSatisfiable(cnf)
	if err != nil {
		return false, fmt.Errorf("solve %s: %w", key, err)
	}
	r.memo[key] = v
	c.log.Debug("sat result", "pc", key, "sat", v)
	return v, nil
}
