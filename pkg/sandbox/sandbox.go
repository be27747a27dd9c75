// Package sandbox bounds filesystem operations to a root directory.
//
// The scrub tool server resolves every caller-supplied filename through a
// Sandbox before touching the filesystem; a name that would escape the
// root is rejected without any filesystem access.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEscape is returned when a resolved path would land outside the root.
var ErrEscape = errors.New("path escapes sandbox")

// Sandbox validates that paths stay within a root directory.
// Immutable after New.
type Sandbox struct {
	root string
}

// New creates a Sandbox rooted at root. The root is canonicalized once;
// it does not need to exist yet.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	return &Sandbox{root: filepath.Clean(abs)}, nil
}

// Root returns the canonicalized sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve joins name under root/subdir (root when subdir is empty) and
// returns the absolute result, or ErrEscape when the cleaned path is not a
// descendant of the base. Rejection happens before any filesystem access.
func (s *Sandbox) Resolve(name, subdir string) (string, error) {
	base := s.root
	if subdir != "" {
		base = filepath.Join(s.root, subdir)
	}

	// An absolute name must never be re-rooted under the base. Joining
	// "/etc/passwd" under base would yield base/etc/passwd, which passes
	// the containment check while honoring none of the caller's intent.
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrEscape, name)
	}

	target := filepath.Clean(filepath.Join(base, name))
	if target != base && !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscape, name)
	}
	return target, nil
}
