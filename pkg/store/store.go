// Package store keeps the current and the previous revision of the
// variability model, build model and code model in a badger database and
// attaches change flags to every stored artifact.
//
// Flags are computed once, when a revision is committed, by diffing it
// against the head revision. Reads never recompute them.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/pkg/cache"
	"github.com/l3aro/go-undead/pkg/model"
)

// ErrNotFound is returned when a requested revision or artifact does not exist.
var ErrNotFound = errors.New("not found")

// DefaultCacheSize bounds the number of decoded previous-revision files kept in memory.
const DefaultCacheSize = 256

// Config configures a Store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests.
	InMemory bool

	// CacheSize bounds the previous-file cache. 0 selects DefaultCacheSize.
	CacheSize int

	// Logger receives store and badger diagnostics. nil selects log.Default().
	Logger log.Logger
}

// Store is the change-aware model store.
type Store struct {
	db     *badger.DB
	logger log.Logger
	files  *cache.LRUCache[string, *model.SourceFile]
}

// badgerLogger routes badger's diagnostics into our logger. Badger is
// chatty at info level, so everything but errors goes to debug.
type badgerLogger struct {
	logger log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens or creates a store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	logger := log.OrDefault(cfg.Logger)

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Store{
		db:     db,
		logger: logger,
		files:  cache.New(cache.Options[string, *model.SourceFile]{
			MaxSize: size,
			OnEvict: func(key string, _ *model.SourceFile) {
				logger.Debug("evicted previous file", "key", key)
			},
		}),
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key layout:
//
//	meta/head                   head revision number
//	rev/<n>/vm, rev/<n>/bm      models
//	rev/<n>/cm/<path>           code-model files
//	rev/<n>/flags/vm|bm         model flags
//	rev/<n>/flags/cm/<path>     file flags, also kept for deleted files

var headKey = []byte("meta/head")

func revPrefix(rev uint64) string {
	return fmt.Sprintf("rev/%08d/", rev)
}

func vmKey(rev uint64) []byte { return []byte(revPrefix(rev) + "vm") }
func bmKey(rev uint64) []byte { return []byte(revPrefix(rev) + "bm") }
func cmPrefix(rev uint64) []byte { return []byte(revPrefix(rev) + "cm/") }
func vmFlagsKey(rev uint64) []byte { return []byte(revPrefix(rev) + "flags/vm") }
func bmFlagsKey(rev uint64) []byte { return []byte(revPrefix(rev) + "flags/bm") }
func fileFlagsPrefix(rev uint64) []byte {
	return []byte(revPrefix(rev) + "flags/cm/")
}

func cmKey(rev uint64, path string) []byte {
	return append(cmPrefix(rev), path...)
}

func fileFlagsKey(rev uint64, path string) []byte {
	return append(fileFlagsPrefix(rev), path...)
}

// Head returns the current revision number, 0 if nothing was committed yet.
func (s *Store) Head() (uint64, error) {
	var head uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		head, err = readHead(txn)
		return err
	})
	return head, err
}

func readHead(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(headKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}
	var head uint64
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &head)
	})
	if err != nil {
		return 0, fmt.Errorf("decode head: %w", err)
	}
	return head, nil
}

// getValue reads a key, mapping absence to ErrNotFound.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return item.ValueCopy(nil)
}

// revision resolves the current (offset 0) or previous (offset 1) revision.
func (s *Store) revision(txn *badger.Txn, offset uint64) (uint64, error) {
	head, err := readHead(txn)
	if err != nil {
		return 0, err
	}
	if head <= offset {
		what := "current"
		if offset > 0 {
			what = "previous"
		}
		return 0, fmt.Errorf("%s revision: %w", what, ErrNotFound)
	}
	return head - offset, nil
}

func (s *Store) readVariabilityModel(offset uint64) (*model.VariabilityModel, error) {
	var vm *model.VariabilityModel
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, offset)
		if err != nil {
			return err
		}
		data, err := getValue(txn, vmKey(rev))
		if err != nil {
			return err
		}
		vm, err = decodeVariabilityModel(data)
		return err
	})
	return vm, err
}

func (s *Store) readBuildModel(offset uint64) (*model.BuildModel, error) {
	var bm *model.BuildModel
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, offset)
		if err != nil {
			return err
		}
		data, err := getValue(txn, bmKey(rev))
		if err != nil {
			return err
		}
		bm, err = decodeBuildModel(data)
		return err
	})
	return bm, err
}

func (s *Store) readFlags(offset uint64, key func(uint64) []byte) (model.FlagSet, error) {
	var flags model.FlagSet
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, offset)
		if err != nil {
			return err
		}
		data, err := getValue(txn, key(rev))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		flags, err = decodeFlags(data)
		return err
	})
	return flags, err
}

// ReadCurrentVariabilityModel returns the head variability model.
func (s *Store) ReadCurrentVariabilityModel() (*model.VariabilityModel, error) {
	return s.readVariabilityModel(0)
}

// ReadPreviousVariabilityModel returns the variability model of head-1.
func (s *Store) ReadPreviousVariabilityModel() (*model.VariabilityModel, error) {
	return s.readVariabilityModel(1)
}

// ReadCurrentBuildModel returns the head build model.
func (s *Store) ReadCurrentBuildModel() (*model.BuildModel, error) {
	return s.readBuildModel(0)
}

// ReadPreviousBuildModel returns the build model of head-1.
func (s *Store) ReadPreviousBuildModel() (*model.BuildModel, error) {
	return s.readBuildModel(1)
}

// VariabilityModelFlags returns the flags of the head variability model.
func (s *Store) VariabilityModelFlags() (model.FlagSet, error) {
	return s.readFlags(0, vmFlagsKey)
}

// BuildModelFlags returns the flags of the head build model.
func (s *Store) BuildModelFlags() (model.FlagSet, error) {
	return s.readFlags(0, bmFlagsKey)
}

// CodeModelFlags returns the flags of a code-model file in the head
// revision. Deleted files keep their Deletion flag.
func (s *Store) CodeModelFlags(path string) (model.FlagSet, error) {
	return s.readFlags(0, func(rev uint64) []byte { return fileFlagsKey(rev, path) })
}

// ReadCurrentCodeModel returns all files of the head code model in path order.
func (s *Store) ReadCurrentCodeModel() ([]*model.SourceFile, error) {
	var files []*model.SourceFile
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, 0)
		if err != nil {
			return err
		}
		prefix := cmPrefix(rev)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var f *model.SourceFile
			err := it.Item().Value(func(val []byte) error {
				var err error
				f, err = decodeSourceFile(val)
				return err
			})
			if err != nil {
				return err
			}
			files = append(files, f)
		}
		return nil
	})
	return files, err
}

// ReadCurrentCodeModelFlagged returns the head files carrying flag, in path order.
func (s *Store) ReadCurrentCodeModelFlagged(flag model.ChangeFlag) ([]*model.SourceFile, error) {
	var files []*model.SourceFile
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, 0)
		if err != nil {
			return err
		}
		prefix := fileFlagsPrefix(rev)
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(prefix):])
			var flags model.FlagSet
			err := item.Value(func(val []byte) error {
				var err error
				flags, err = decodeFlags(val)
				return err
			})
			if err != nil {
				return err
			}
			if !flags.Has(flag) {
				continue
			}
			data, err := getValue(txn, cmKey(rev, path))
			if errors.Is(err, ErrNotFound) {
				// deleted in this revision
				continue
			}
			if err != nil {
				return err
			}
			f, err := decodeSourceFile(data)
			if err != nil {
				return err
			}
			files = append(files, f)
		}
		return nil
	})
	return files, err
}

// ReadPreviousCodeModel returns the head-1 version of a file. Results are
// cached; the cache is keyed by revision so commits never serve stale data.
func (s *Store) ReadPreviousCodeModel(path string) (*model.SourceFile, error) {
	var rev uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rev, err = s.revision(txn, 1)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.files.GetOrLoad(strconv.FormatUint(rev, 10)+"/"+path, func() (*model.SourceFile, error) {
		var f *model.SourceFile
		err := s.db.View(func(txn *badger.Txn) error {
			data, err := getValue(txn, cmKey(rev, path))
			if err != nil {
				return err
			}
			f, err = decodeSourceFile(data)
			return err
		})
		return f, err
	})
}

// CacheStats exposes previous-file cache statistics.
func (s *Store) CacheStats() cache.Stats {
	return s.files.Stats()
}

// ResetCacheStats zeroes the previous-file cache counters.
func (s *Store) ResetCacheStats() {
	s.files.ResetStats()
}

// Transition holds the change flags of one revision relative to its predecessor.
type Transition struct {
	Revision         uint64
	VariabilityModel model.FlagSet
	BuildModel       model.FlagSet
	Files            map[string]model.FlagSet
}

// ChangedFiles returns the paths with any flag, sorted.
func (t *Transition) ChangedFiles() []string {
	var paths []string
	for p, f := range t.Files {
		if f.Any() {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// ReadTransition returns the flags of the head revision.
func (s *Store) ReadTransition() (*Transition, error) {
	t := &Transition{Files: make(map[string]model.FlagSet)}
	err := s.db.View(func(txn *badger.Txn) error {
		rev, err := s.revision(txn, 0)
		if err != nil {
			return err
		}
		t.Revision = rev
		for _, kf := range []struct {
			key []byte
			dst *model.FlagSet
		}{{vmFlagsKey(rev), &t.VariabilityModel}, {bmFlagsKey(rev), &t.BuildModel}} {
			data, err := getValue(txn, kf.key)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if *kf.dst, err = decodeFlags(data); err != nil {
				return err
			}
		}
		prefix := fileFlagsPrefix(rev)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				flags, err := decodeFlags(val)
				t.Files[path] = flags
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
