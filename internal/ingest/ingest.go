// Package ingest runs incremental extraction: it scans a source tree,
// re-extracts what changed since the last run and commits a new model
// revision.
package ingest

import (
	"context"
	"fmt"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/scanner"
	"github.com/l3aro/go-undead/pkg/dirty"
	"github.com/l3aro/go-undead/pkg/extract"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/store"
)

// Tracker keys of the inputs.
const (
	sourceScope    = "src:"
	variabilityKey = "model:variability"
	buildKey       = "model:build"
)

// Inputs names what to extract.
type Inputs struct {
	// SourceDir is the root of the C sources. Empty skips code extraction.
	SourceDir string
	// VariabilityModel and BuildModel are YAML model files.
	VariabilityModel string
	BuildModel       string
	// Workers bounds concurrent file extraction.
	Workers int
	// Force re-extracts every input regardless of recorded hashes.
	Force bool
}

// Result describes one ingest run.
type Result struct {
	// Transition is nil when nothing changed.
	Transition *store.Transition

	Changed                 []string
	Removed                 []string
	VariabilityModelChanged bool
	BuildModelChanged       bool
}

// UpToDate reports whether no revision was committed.
func (r *Result) UpToDate() bool {
	return r.Transition == nil
}

// Run extracts the changed inputs and commits them to st. The tracker is
// updated and saved only after the commit succeeded.
func Run(ctx context.Context, st *store.Store, tracker *dirty.Tracker, in Inputs, logger log.Logger) (*Result, error) {
	logger = log.OrDefault(logger)
	if in.Force {
		tracker.Clear()
	}

	head, err := st.Head()
	if err != nil {
		return nil, fmt.Errorf("reading store head: %w", err)
	}
	if head == 0 {
		// an empty store needs every input regardless of what was recorded
		tracker.Clear()
	}

	res := &Result{}
	var rev store.Revision
	type recorded struct{ key, hash string }
	var records []recorded

	if in.VariabilityModel != "" {
		changed, hash, err := tracker.Check(variabilityKey, in.VariabilityModel)
		if err != nil {
			return nil, err
		}
		if changed {
			if rev.VariabilityModel, err = extract.LoadVariabilityModel(in.VariabilityModel); err != nil {
				return nil, err
			}
			res.VariabilityModelChanged = true
			records = append(records, recorded{variabilityKey, hash})
		}
	}
	if in.BuildModel != "" {
		changed, hash, err := tracker.Check(buildKey, in.BuildModel)
		if err != nil {
			return nil, err
		}
		if changed {
			if rev.BuildModel, err = extract.LoadBuildModel(in.BuildModel); err != nil {
				return nil, err
			}
			res.BuildModelChanged = true
			records = append(records, recorded{buildKey, hash})
		}
	}

	var cs *dirty.ChangeSet
	if in.SourceDir != "" {
		files, err := scanner.Scan(in.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", in.SourceDir, err)
		}
		cs, err = tracker.Changes(in.SourceDir, sourceScope, scanner.Paths(files))
		if err != nil {
			return nil, err
		}
		res.Changed, res.Removed = cs.Changed, cs.Removed
		logger.Debug("scanned sources", "files", len(files), "changed", len(cs.Changed), "removed", len(cs.Removed))

		if len(cs.Changed) > 0 {
			workers := in.Workers
			if workers < 1 {
				workers = 1
			}
			if rev.Files, err = extract.ExtractAll(ctx, in.SourceDir, cs.Changed, workers); err != nil {
				return nil, err
			}
		}
		rev.Deleted = cs.Removed
	}

	if rev.VariabilityModel == nil && rev.BuildModel == nil && (cs == nil || cs.Empty()) {
		logger.Info("models are up to date", "revision", head)
		return res, nil
	}
	if head == 0 && (rev.VariabilityModel == nil || rev.BuildModel == nil) {
		return nil, fmt.Errorf("first revision needs both a variability and a build model: %w", store.ErrNotFound)
	}

	t, err := st.Commit(rev)
	if err != nil {
		return nil, fmt.Errorf("committing revision: %w", err)
	}
	res.Transition = t

	for _, r := range records {
		tracker.Record(r.key, r.hash)
	}
	if cs != nil {
		tracker.Apply(cs)
	}
	if err := tracker.Save(); err != nil {
		return nil, err
	}

	logger.Info("committed revision",
		"revision", t.Revision,
		"variability", flagsText(t.VariabilityModel),
		"build", flagsText(t.BuildModel),
		"files", len(t.ChangedFiles()))
	return res, nil
}

func flagsText(f model.FlagSet) string {
	if !f.Any() {
		return "unchanged"
	}
	return f.String()
}
