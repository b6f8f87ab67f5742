// Package scanner finds the C sources of a project tree. It respects
// .undeadignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Kind     Kind
	Size     int64 // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .undeadignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".undeadignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			".undead",
			"node_modules",
		},
	}
}

// ignoreFile holds the patterns of one ignore file and the directory it
// applies to ("" for root).
type ignoreFile struct {
	base     string
	patterns []IgnorePattern
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".undeadignore"
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns its .c and .h files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var ignores []ignoreFile
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				ignores = s.appendIgnoreFile(ignores, path, "")
				return nil
			}
			if (s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".")) || s.isDefaultExcluded(d.Name()) || ignored(ignores, rel, true) {
				return filepath.SkipDir
			}
			ignores = s.appendIgnoreFile(ignores, path, rel)
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		kind := DetectKind(filepath.Ext(path))
		if kind == "" || ignored(ignores, rel, false) {
			return nil
		}

		info, err := s.fileInfo(absRoot, path, d)
		if err != nil || info == nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// fileInfo stats a regular file or an allowed symlink. nil means skip.
func (s *Scanner) fileInfo(absRoot, path string, d fs.DirEntry) (os.FileInfo, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Info()
	}
	if !s.opts.FollowSymlinks {
		return nil, nil
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, nil
	}
	if !strings.HasPrefix(real, absRoot+string(filepath.Separator)) {
		return nil, nil
	}
	info, err := os.Stat(real)
	if err != nil || info.IsDir() {
		return nil, nil
	}
	return info, nil
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if name == exclude {
			return true
		}
	}
	return false
}

func (s *Scanner) appendIgnoreFile(ignores []ignoreFile, dir, rel string) []ignoreFile {
	patterns, err := s.loadIgnorePatterns(dir)
	if err != nil || len(patterns) == 0 {
		return ignores
	}
	if rel == "." {
		rel = ""
	}
	return append(ignores, ignoreFile{base: rel, patterns: patterns})
}

// loadIgnorePatterns loads the ignore file of dir, if any.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// ignored applies all ignore files above rel in order; the last matching
// pattern wins.
func ignored(ignores []ignoreFile, rel string, isDir bool) bool {
	result := false
	for _, f := range ignores {
		sub := rel
		if f.base != "" {
			if !strings.HasPrefix(rel, f.base+"/") {
				continue
			}
			sub = rel[len(f.base)+1:]
		}
		for _, p := range f.patterns {
			if p.Match(sub, isDir) {
				result = !p.IsNegation()
			}
		}
	}
	return result
}

// Paths returns the relative paths of files.
func Paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
