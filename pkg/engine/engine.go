// Package engine orchestrates one incremental dead-code analysis run over
// the head revision of a model store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/metrics"
	"github.com/l3aro/go-undead/pkg/deadcode"
	"github.com/l3aro/go-undead/pkg/diff"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/parallel"
	"github.com/l3aro/go-undead/pkg/policy"
	"github.com/l3aro/go-undead/pkg/relevancy"
	"github.com/l3aro/go-undead/pkg/sat"
	"github.com/l3aro/go-undead/pkg/store"
)

// ErrModelsUnavailable is returned when a current model cannot be read.
// Nothing is emitted in that case.
var ErrModelsUnavailable = errors.New("models unavailable")

// Reader is the read side of the model store used by a run.
type Reader interface {
	ReadCurrentVariabilityModel() (*model.VariabilityModel, error)
	ReadCurrentBuildModel() (*model.BuildModel, error)
	ReadPreviousBuildModel() (*model.BuildModel, error)
	ReadCurrentCodeModel() ([]*model.SourceFile, error)
	ReadCurrentCodeModelFlagged(flag model.ChangeFlag) ([]*model.SourceFile, error)
	ReadPreviousCodeModel(path string) (*model.SourceFile, error)
	VariabilityModelFlags() (model.FlagSet, error)
	BuildModelFlags() (model.FlagSet, error)
	CodeModelFlags(path string) (model.FlagSet, error)
}

// Options is the semantic configuration of a run.
type Options struct {
	// OnlyVariabilityRelatedBlocks restricts checks to elements whose
	// presence condition references a variability variable.
	OnlyVariabilityRelatedBlocks bool
	BuildModelOptimization       bool
	CodeModelOptimization        bool
	Workers                      int
	// RelevancyPrefix names variability variables. Empty selects
	// relevancy.DefaultPrefix.
	RelevancyPrefix string
	// SolverTimeout bounds a single satisfiability query. Zero is unbounded.
	SolverTimeout time.Duration
}

// DefaultOptions returns options with all optimizations disabled.
func DefaultOptions() Options {
	return Options{Workers: 2, RelevancyPrefix: relevancy.DefaultPrefix}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. nil keeps the default logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = log.OrDefault(l) }
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConverter replaces the CNF converter.
func WithConverter(c sat.Converter) Option {
	return func(e *Engine) { e.converter = c }
}

// WithSolvers replaces the solver backend. newFactory receives the CNF of
// the variability model.
func WithSolvers(newFactory func(model sat.CNF) sat.SolverFactory) Option {
	return func(e *Engine) { e.newSolvers = newFactory }
}

// Engine runs analyses. Runs on one Engine must not overlap.
type Engine struct {
	store      Reader
	opts       Options
	log        log.Logger
	metrics    *metrics.Metrics
	converter  sat.Converter
	newSolvers func(model sat.CNF) sat.SolverFactory
}

// New validates opts and returns an Engine reading from r.
func New(r Reader, opts Options, options ...Option) (*Engine, error) {
	if r == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("engine: %w (got %d)", parallel.ErrInvalidWorkerCount, opts.Workers)
	}
	e := &Engine{
		store:     r,
		opts:      opts,
		log:       log.Default(),
		converter: sat.NewCircuitConverter(),
	}
	e.newSolvers = func(m sat.CNF) sat.SolverFactory {
		return sat.NewGiniFactory(m, e.opts.SolverTimeout)
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Summary describes a finished run.
type Summary struct {
	RunID           string
	Decision        policy.Decision
	FilesConsidered int
	FilesSubmitted  int
	FilesSkipped    int
	DeadBlocks      int
	Duration        time.Duration
}

// Run analyzes the head revision. consume receives dead blocks in path
// order, and in pre-order within a file, from a single goroutine.
// Cancelling ctx stops submitting files; already submitted files are
// drained before ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context, consume func(model.DeadCodeBlock)) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString()}

	vm, err := e.store.ReadCurrentVariabilityModel()
	if err != nil {
		return nil, fmt.Errorf("%w: variability model: %w", ErrModelsUnavailable, err)
	}
	bm, err := e.store.ReadCurrentBuildModel()
	if err != nil {
		return nil, fmt.Errorf("%w: build model: %w", ErrModelsUnavailable, err)
	}

	bmFlags := e.modelFlags("build model", e.store.BuildModelFlags)
	vmFlags := e.modelFlags("variability model", e.store.VariabilityModelFlags)
	sum.Decision = policy.Decide(bmFlags, vmFlags, e.opts.CodeModelOptimization)

	var files []*model.SourceFile
	if sum.Decision.Scope == policy.Full {
		e.log.Info("performing full analysis on the complete code model", "run", sum.RunID)
		files, err = e.store.ReadCurrentCodeModel()
	} else {
		e.log.Info("performing partial analysis on newly extracted files", "run", sum.RunID)
		files, err = e.store.ReadCurrentCodeModelFlagged(model.ExtractionChange)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: code model: %w", ErrModelsUnavailable, err)
	}
	sum.FilesConsidered = len(files)

	modelCNF, err := e.converter.Convert(vm.Formula())
	if err != nil {
		return nil, fmt.Errorf("convert variability model: %w", err)
	}

	checker, err := e.newChecker(bm, modelCNF, sum.Decision, files)
	if err != nil {
		return nil, err
	}

	var detector *diff.Detector
	if sum.Decision.ReduceCodeModel {
		detector = diff.New(diff.OnlyVariabilityChange, relevancy.New(e.opts.RelevancyPrefix))
	}

	exec, err := parallel.New(checker.FindDeadBlocks, func(blocks []model.DeadCodeBlock) {
		for _, b := range blocks {
			sum.DeadBlocks++
			consume(b)
		}
	}, e.opts.Workers)
	if err != nil {
		return nil, err
	}

	var runErr error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if detector != nil && !e.structureChanged(detector, f) {
			sum.FilesSkipped++
			continue
		}
		if err := exec.Submit(f); err != nil {
			runErr = err
			break
		}
		sum.FilesSubmitted++
	}
	exec.Finish()
	exec.Wait()

	sum.Duration = time.Since(start)
	if runErr != nil {
		return sum, runErr
	}
	e.log.Info("analysis finished",
		"run", sum.RunID,
		"scope", sum.Decision.Scope.String(),
		"files", sum.FilesSubmitted,
		"skipped", sum.FilesSkipped,
		"dead_blocks", sum.DeadBlocks,
		"duration", sum.Duration.String())
	return sum, nil
}

// modelFlags reads the flags of a model. A failed read is treated as a
// material modification so that no optimization applies.
func (e *Engine) modelFlags(what string, read func() (model.FlagSet, error)) model.FlagSet {
	flags, err := read()
	if err != nil {
		e.log.Warn("could not read change flags, assuming modification", "model", what, "error", err)
		return model.NewFlagSet(model.ExtractionChange, model.Modification)
	}
	return flags
}

// newChecker reads everything the workers need up front so that workers
// never touch the store.
func (e *Engine) newChecker(bm *model.BuildModel, modelCNF sat.CNF, d policy.Decision, files []*model.SourceFile) (*deadcode.Checker, error) {
	cfg := deadcode.Config{
		BuildModel:              bm,
		Solvers:                 e.newSolvers(modelCNF),
		Converter:               e.converter,
		BuildModelOptimization:  e.opts.BuildModelOptimization,
		BuildModelChanged:       d.BuildModelChanged,
		VariabilityModelChanged: d.VariabilityModelChanged,
		Logger:                  e.log,
		Metrics:                 e.metrics,
	}
	if e.opts.OnlyVariabilityRelatedBlocks {
		cfg.Filter = relevancy.New(e.opts.RelevancyPrefix)
	}

	if e.opts.BuildModelOptimization {
		prev, err := e.store.ReadPreviousBuildModel()
		if err != nil {
			e.log.Warn("previous build model unavailable, build model optimization disabled", "error", err)
		} else {
			cfg.PreviousBuildModel = prev
			flags := make(map[string]model.FlagSet, len(files))
			for _, f := range files {
				fs, err := e.store.CodeModelFlags(f.Path)
				if err != nil {
					e.log.Warn("could not read file flags, treating as newly extracted", "file", f.Path, "error", err)
					fs = model.NewFlagSet(model.ExtractionChange)
				}
				flags[f.Path] = fs
			}
			cfg.FileFlags = func(path string) model.FlagSet { return flags[path] }
		}
	}

	return deadcode.New(cfg)
}

// structureChanged reports whether f must be analyzed under code-model
// reduction. A missing previous revision forces analysis.
func (e *Engine) structureChanged(d *diff.Detector, f *model.SourceFile) bool {
	prev, err := e.store.ReadPreviousCodeModel(f.Path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.log.Debug("no previous revision, analyzing", "file", f.Path)
		} else {
			e.log.Warn("could not read previous revision, analyzing", "file", f.Path, "error", err)
		}
		return true
	}
	if d.IsDifferent(f, prev) {
		return true
	}
	e.log.Info("skipping file, variability structure unchanged", "file", f.Path)
	e.metrics.FileSkipped(metrics.ReasonStructureUnchanged)
	return false
}
