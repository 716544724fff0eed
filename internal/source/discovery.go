package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidRoot indicates the project root is missing or not a directory
	ErrInvalidRoot = errors.New("invalid project root")

	// ErrNoSourceFiles indicates discovery found nothing to analyze
	ErrNoSourceFiles = errors.New("no source files found")
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// FileDiscovery finds Python source files below a root directory using
// include and ignore glob patterns.
type FileDiscovery struct {
	rootDir        string
	includePattern []compiledPattern
	ignorePatterns []compiledPattern
}

// NewFileDiscovery creates a new file discovery instance.
func NewFileDiscovery(rootDir string, includePatterns, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{
		rootDir: rootDir,
	}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		fd.includePattern = append(fd.includePattern, compiledPattern{pattern: pattern, glob: g})
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		fd.ignorePatterns = append(fd.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return fd, nil
}

// Discover walks the directory tree and returns the matching files as
// absolute paths, sorted so that every run sees the same order.
func (fd *FileDiscovery) Discover() ([]string, error) {
	info, err := os.Stat(fd.rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, fd.rootDir)
	}

	files := []string{}
	err = filepath.WalkDir(fd.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == fd.rootDir {
				return err
			}
			// Unreadable subdirectories are skipped, not fatal
			return nil
		}

		relPath, err := filepath.Rel(fd.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && fd.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if fd.shouldIgnore(relPath) {
			return nil
		}

		if fd.matchesAnyPattern(relPath, fd.includePattern) {
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	sort.Strings(files)
	return files, nil
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if fd.matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// A directory "node_modules" should match the pattern "node_modules/**"
	return fd.matchesAnyPattern(relPath+"/**", fd.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (fd *FileDiscovery) matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// "**/*.py" should match "manage.py" at the root and "**/migrations/**"
	// should match "migrations/0001.py", so retry without the leading "**/".
	for _, cp := range patterns {
		if !strings.HasPrefix(cp.pattern, "**/") {
			continue
		}
		simplified := strings.TrimPrefix(cp.pattern, "**/")
		if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
			if simplifiedGlob.Match(path) {
				return true
			}
		}
	}

	return false
}

// ModulePath converts a slash-separated path relative to the project root
// into a Python module path: "app/views.py" -> "app.views",
// "app/__init__.py" -> "app".
func ModulePath(relPath string) string {
	p := strings.TrimSuffix(filepath.ToSlash(relPath), ".py")
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}
