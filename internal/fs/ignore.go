package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// defaultIgnorePatterns name desktop metadata files that never carry user content.
var defaultIgnorePatterns = []string{".DS_Store", "Thumbs.db", "desktop.ini"}

type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the user-relative path; false = basename only
}

// IgnoreMatcher hides nodes from the resolver.
// Patterns without '/' match a node's basename. Patterns with '/' match its
// path relative to the user's root, without the leading slash.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings plus the defaults.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range append(append([]string{}, defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the node at nodePath should be ignored.
// nodePath uses forward slashes, as in tracker.Node.Path.
func (m *IgnoreMatcher) Match(nodePath string) bool {
	rel := strings.TrimPrefix(nodePath, "/")
	if rel == "" {
		return false
	}
	base := path.Base(rel)

	for _, p := range m.patterns {
		target := base
		if p.matchPath {
			target = rel
		}
		matched, err := path.Match(p.pattern, target)
		if err != nil {
			// Bad pattern: skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
