package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-undead/pkg/model"
)

// Revision is the output of one extraction run.
type Revision struct {
	// VariabilityModel is the re-extracted model, or nil to carry the head
	// model over unchanged.
	VariabilityModel *model.VariabilityModel

	// BuildModel is the re-extracted model, or nil to carry the head model
	// over unchanged.
	BuildModel *model.BuildModel

	// Files are the re-extracted code-model files. Files of the head
	// revision that are neither listed here nor deleted are carried over.
	Files []*model.SourceFile

	// Deleted lists paths removed from the code model.
	Deleted []string
}

// Commit stores rev as the new head, computing its change flags against
// the current head. Only the new head and its predecessor are retained.
func (s *Store) Commit(rev Revision) (*Transition, error) {
	head, err := s.Head()
	if err != nil {
		return nil, err
	}
	next := head + 1
	t := &Transition{Revision: next, Files: make(map[string]model.FlagSet)}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	set := func(key []byte, value []byte) error {
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		return nil
	}
	setFlags := func(key []byte, flags model.FlagSet) error {
		if !flags.Any() {
			return nil
		}
		data, err := encodeFlags(flags)
		if err != nil {
			return err
		}
		return set(key, data)
	}

	// Variability model.
	vmData, vmFlags, err := s.commitVariabilityModel(head, rev.VariabilityModel)
	if err != nil {
		return nil, err
	}
	t.VariabilityModel = vmFlags
	if err := set(vmKey(next), vmData); err != nil {
		return nil, err
	}
	if err := setFlags(vmFlagsKey(next), vmFlags); err != nil {
		return nil, err
	}

	// Build model.
	bmData, bmFlags, err := s.commitBuildModel(head, rev.BuildModel)
	if err != nil {
		return nil, err
	}
	t.BuildModel = bmFlags
	if err := set(bmKey(next), bmData); err != nil {
		return nil, err
	}
	if err := setFlags(bmFlagsKey(next), bmFlags); err != nil {
		return nil, err
	}

	// Code model.
	files, err := s.commitCodeModel(head, rev)
	if err != nil {
		return nil, err
	}
	for _, cf := range files {
		t.Files[cf.path] = cf.flags
		if cf.data != nil {
			if err := set(cmKey(next, cf.path), cf.data); err != nil {
				return nil, err
			}
		}
		if err := setFlags(fileFlagsKey(next, cf.path), cf.flags); err != nil {
			return nil, err
		}
	}

	headData, err := msgpack.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode head: %w", err)
	}
	if err := set(headKey, headData); err != nil {
		return nil, err
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("commit revision %d: %w", next, err)
	}

	if next > 2 {
		if err := s.prune(next - 2); err != nil {
			// Stale data is harmless; only head and head-1 are ever read.
			s.logger.Warn("failed to prune revision", "revision", next-2, "error", err)
		}
	}
	// cached previous files belong to a revision that is no longer head-1
	s.files.Clear()

	s.logger.Info("committed revision",
		"revision", next,
		"vm_flags", vmFlags.String(),
		"bm_flags", bmFlags.String(),
		"changed_files", len(t.ChangedFiles()),
	)
	return t, nil
}

// flagsFor classifies a re-extracted artifact against its predecessor.
func flagsFor(hasPrevious, equal, semanticallyEqual bool) model.FlagSet {
	flags := model.NewFlagSet(model.ExtractionChange)
	switch {
	case !hasPrevious:
		return flags.With(model.Addition)
	case equal:
		return flags
	case semanticallyEqual:
		return flags.With(model.Modification, model.AuxiliaryChange)
	default:
		return flags.With(model.Modification)
	}
}

func (s *Store) commitVariabilityModel(head uint64, vm *model.VariabilityModel) ([]byte, model.FlagSet, error) {
	var prevData []byte
	if head > 0 {
		err := s.db.View(func(txn *badger.Txn) error {
			var err error
			prevData, err = getValue(txn, vmKey(head))
			return err
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, 0, err
		}
	}

	if vm == nil {
		if prevData == nil {
			return nil, 0, fmt.Errorf("variability model: nothing to carry over: %w", ErrNotFound)
		}
		return prevData, 0, nil
	}

	data, err := encodeVariabilityModel(vm)
	if err != nil {
		return nil, 0, fmt.Errorf("encode variability model: %w", err)
	}
	if prevData == nil {
		return data, flagsFor(false, false, false), nil
	}
	prev, err := decodeVariabilityModel(prevData)
	if err != nil {
		return nil, 0, err
	}
	return data, flagsFor(true, vm.Equal(prev), vm.SemanticallyEqual(prev)), nil
}

func (s *Store) commitBuildModel(head uint64, bm *model.BuildModel) ([]byte, model.FlagSet, error) {
	var prevData []byte
	if head > 0 {
		err := s.db.View(func(txn *badger.Txn) error {
			var err error
			prevData, err = getValue(txn, bmKey(head))
			return err
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, 0, err
		}
	}

	if bm == nil {
		if prevData == nil {
			return nil, 0, fmt.Errorf("build model: nothing to carry over: %w", ErrNotFound)
		}
		return prevData, 0, nil
	}

	data, err := encodeBuildModel(bm)
	if err != nil {
		return nil, 0, fmt.Errorf("encode build model: %w", err)
	}
	if prevData == nil {
		return data, flagsFor(false, false, false), nil
	}
	prev, err := decodeBuildModel(prevData)
	if err != nil {
		return nil, 0, err
	}
	return data, flagsFor(true, bm.Equal(prev), bm.SemanticallyEqual(prev)), nil
}

type committedFile struct {
	path  string
	data  []byte // nil for deleted files
	flags model.FlagSet
}

func (s *Store) commitCodeModel(head uint64, rev Revision) ([]committedFile, error) {
	previous := make(map[string][]byte)
	if head > 0 {
		err := s.db.View(func(txn *badger.Txn) error {
			prefix := cmPrefix(head)
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				data, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				previous[string(item.Key()[len(prefix):])] = data
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read head code model: %w", err)
		}
	}

	deleted := make(map[string]bool, len(rev.Deleted))
	for _, p := range rev.Deleted {
		deleted[p] = true
	}
	extracted := make(map[string]*model.SourceFile, len(rev.Files))
	for _, f := range rev.Files {
		if f == nil || f.Path == "" {
			return nil, errors.New("code model file without path")
		}
		if deleted[f.Path] {
			return nil, fmt.Errorf("file %s is both re-extracted and deleted", f.Path)
		}
		if _, dup := extracted[f.Path]; dup {
			return nil, fmt.Errorf("file %s extracted twice", f.Path)
		}
		extracted[f.Path] = f
	}

	var out []committedFile
	for path, data := range previous {
		if deleted[path] || extracted[path] != nil {
			continue
		}
		out = append(out, committedFile{path: path, data: data})
	}
	for path := range deleted {
		if _, ok := previous[path]; !ok {
			s.logger.Debug("ignoring deletion of unknown file", "path", path)
			continue
		}
		out = append(out, committedFile{path: path, flags: model.NewFlagSet(model.Deletion)})
	}
	for path, f := range extracted {
		data, err := encodeSourceFile(f)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		flags := model.NewFlagSet(model.ExtractionChange)
		if prevData, ok := previous[path]; !ok {
			flags = flags.With(model.Addition)
		} else {
			prev, err := decodeSourceFile(prevData)
			if err != nil {
				return nil, err
			}
			if !f.Equal(prev) {
				flags = flags.With(model.Modification)
			}
		}
		out = append(out, committedFile{path: path, data: data, flags: flags})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

// prune deletes every key of revision rev.
func (s *Store) prune(rev uint64) error {
	prefix := []byte(revPrefix(rev))
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}
