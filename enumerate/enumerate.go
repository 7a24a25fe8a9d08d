// Package enumerate discovers the items a batch run works on.
//
// List scans a single directory (non-recursively), keeps regular files whose
// extension is accepted and whose full path matches the name pattern, and returns
// them in natural order of their base names. Indexes are assigned in that order and
// identify the item for the rest of the run.
package enumerate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/nomis52/featurebatch/natsort"
)

// DefaultExtensions are the extensions accepted when Options.Extensions is empty.
var DefaultExtensions = []string{".jpg", ".png", ".hevc"}

// DefaultPattern accepts every path.
const DefaultPattern = ".*"

// Item identifies one unit of work.
type Item struct {
	// Index is the 0-based position of the item in enumeration order.
	Index int `json:"index" yaml:"index"`
	// Path is the full path of the source file.
	Path string `json:"path" yaml:"path"`
}

// Name returns the base name of the item without its extension.
func (it Item) Name() string {
	return stem(it.Path)
}

// Options controls which entries of the source directory become items.
type Options struct {
	// Source is the directory to scan.
	Source string `yaml:"dir"`
	// Extensions lists accepted suffixes, compared case-insensitively.
	Extensions []string `yaml:"extensions"`
	// Pattern is a regular expression that must match the whole path.
	Pattern string `yaml:"pattern"`
}

// EnumerationError reports that the source could not be enumerated.
type EnumerationError struct {
	Source string
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerating %s: %v", e.Source, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// List returns the accepted items of opts.Source in natural order.
// For a fixed directory snapshot the result is always the same.
func List(opts Options) ([]Item, error) {
	re, err := CompilePattern(opts.Pattern)
	if err != nil {
		return nil, &EnumerationError{Source: opts.Source, Err: err}
	}

	accepted := normalizeExtensions(opts.Extensions)

	entries, err := os.ReadDir(opts.Source)
	if err != nil {
		return nil, &EnumerationError{Source: opts.Source, Err: err}
	}

	var paths []string
	for _, entry := range entries {
		path := filepath.Join(opts.Source, entry.Name())
		if !slices.Contains(accepted, strings.ToLower(filepath.Ext(path))) {
			continue
		}
		if !isRegular(entry, path) {
			continue
		}
		if !re.MatchString(path) {
			continue
		}
		paths = append(paths, path)
	}

	slices.SortStableFunc(paths, func(a, b string) int {
		if c := natsort.Compare(stem(a), stem(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	items := make([]Item, len(paths))
	for i, p := range paths {
		items[i] = Item{Index: i, Path: p}
	}
	return items, nil
}

// CompilePattern compiles pattern anchored at both ends, so it must match a
// whole path. An empty pattern accepts everything.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// normalizeExtensions lower-cases extensions and adds a missing leading dot.
func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// isRegular follows symlinks so a link to a regular file is accepted.
func isRegular(entry os.DirEntry, path string) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
