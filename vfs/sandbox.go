// Package vfs implements SFAP's virtual filesystem sandbox (spec §4.2): a
// path-rewriting layer between a user-facing namespace rooted at "/" (with
// "~" aliasing the user's home) and real host paths, enforcing that no
// resolved path escapes the assigned root.
//
// The containment check in CheckAccess is a pure string/component
// comparison; it never calls filepath.EvalSymlinks, so a symlink inside
// root that targets outside root is still rejected (spec §4.2's failure
// semantics note).
package vfs

import (
	"errors"
	"path/filepath"
	"strings"
)

// AccessResult mirrors protocol.AccessResult's OK/OUTSIDE_ROOT duality for
// CheckAccess, which package vfs must be importable without pulling in
// package protocol's full enum. server wraps these into protocol values.
type AccessResult uint8

const (
	AccessOK          AccessResult = 0
	AccessOutsideRoot AccessResult = 1
)

// ErrInvalidRoot is returned by New when root is not an absolute path.
var ErrInvalidRoot = errors.New("vfs: root must be an absolute path")

// ErrAccessDenied is returned by Cd/SetHome (and wraps ToVirtual's
// failures) for any translation error — spec §4.2 requires these to
// surface as ACCESS_DENIED, never as a raw filesystem error.
var ErrAccessDenied = errors.New("vfs: access denied")

// Sandbox holds the three canonical host paths (root, home, cwd) plus
// their virtual projections, per spec §3.5.
type Sandbox struct {
	root string
	home string
	cwd  string
}

// New canonicalizes root and constructs a Sandbox with home = cwd = root
// (virtual "/"), per spec §4.2's construction rule.
func New(root string) (*Sandbox, error) {
	if !filepath.IsAbs(root) {
		return nil, ErrInvalidRoot
	}
	root = weaklyCanonical(root)
	return &Sandbox{root: root, home: root, cwd: root}, nil
}

// Root returns the sandbox's canonical host root.
func (s *Sandbox) Root() string { return s.root }

// Pwd returns the virtual path of the current working directory.
func (s *Sandbox) Pwd() string {
	v, _ := s.ToVirtual(s.cwd)
	return v
}

// Home returns the virtual path of the home directory.
func (s *Sandbox) Home() string {
	v, _ := s.ToVirtual(s.home)
	return v
}

// weaklyCanonical approximates std::filesystem::weakly_canonical: clean
// the path lexically without requiring it to exist (unlike
// filepath.EvalSymlinks, which fails on a non-existent path).
func weaklyCanonical(p string) string {
	return filepath.Clean(p)
}

// CheckAccess canonicalizes hostPath (without requiring it to exist) and
// reports whether every path component of root is a prefix of the
// canonical path's components (spec §4.2).
func (s *Sandbox) CheckAccess(hostPath string) AccessResult {
	canon := weaklyCanonical(hostPath)

	rootParts := splitPath(s.root)
	pathParts := splitPath(canon)

	if len(pathParts) < len(rootParts) {
		return AccessOutsideRoot
	}
	for i, rp := range rootParts {
		if pathParts[i] != rp {
			return AccessOutsideRoot
		}
	}
	return AccessOK
}

func splitPath(p string) []string {
	p = filepath.Clean(p)
	p = strings.TrimPrefix(p, string(filepath.Separator))
	if p == "." || p == "" {
		return nil
	}
	return strings.Split(p, string(filepath.Separator))
}

// ToSystem resolves a virtual path to a host path per spec §4.2:
//   - leading "~"  -> replaced by home, then any leading separator in the
//     remainder is dropped
//   - leading "/"  -> virtual-root-relative
//   - otherwise    -> relative to cwd
//
// Resolution happens in one pass against the real, absolute (home/cwd/
// root) base — it is never re-rooted afterwards. That matters for ".."
// walks: original_source's remove_root-then-weakly_canonical order
// strips the root prefix from the *unresolved* buffer so that a walk
// climbing past root stays a real, escaped host path instead of being
// silently re-jailed back under root. Re-stripping root from an
// already-cleaned result (and rejoining against root when the prefix no
// longer matches) would instead collapse any escape back to root
// itself, which is the bug this function must not reintroduce: callers
// (CheckAccess, ToVirtual) are the ones responsible for rejecting an
// escaped result, not ToSystem.
func (s *Sandbox) ToSystem(virtualPath string) string {
	var intermediate string

	switch {
	case strings.HasPrefix(virtualPath, "~"):
		rest := strings.TrimPrefix(virtualPath, "~")
		rest = strings.TrimPrefix(rest, "/")
		intermediate = filepath.Join(s.home, rest)
	case strings.HasPrefix(virtualPath, "/"):
		intermediate = filepath.Join(s.root, virtualPath)
	default:
		intermediate = filepath.Join(s.cwd, virtualPath)
	}

	return weaklyCanonical(intermediate)
}

// ToVirtual converts a host path back to its virtual projection. It
// requires CheckAccess(hostPath) == OK; otherwise it returns
// ErrAccessDenied (spec §4.2).
func (s *Sandbox) ToVirtual(hostPath string) (string, error) {
	if s.CheckAccess(hostPath) != AccessOK {
		return "", ErrAccessDenied
	}
	canon := weaklyCanonical(hostPath)
	if canon == s.root {
		return "/", nil
	}
	rel, err := filepath.Rel(s.root, canon)
	if err != nil {
		return "", ErrAccessDenied
	}
	return "/" + filepath.ToSlash(rel), nil
}

// normalize is to_system followed by to_virtual, collapsing any
// translation failure into ErrAccessDenied (spec §4.2).
func (s *Sandbox) normalize(virtualPath string) (string, error) {
	return s.ToVirtual(s.ToSystem(virtualPath))
}

// TryNormalize is the noexcept-flavored normalize original_source exposes
// as try_normalize: it reports ok=false instead of returning an error,
// for call sites (LS, OPEN) that just need a denied/not-denied branch.
func (s *Sandbox) TryNormalize(virtualPath string) (normalized string, ok bool) {
	v, err := s.normalize(virtualPath)
	if err != nil {
		return "", false
	}
	return v, true
}

// Cd resolves virtualPath and, on success, replaces cwd with the
// normalized result. Any translation error becomes ErrAccessDenied and
// leaves cwd untouched (spec §4.2, §8 boundary behavior).
func (s *Sandbox) Cd(virtualPath string) error {
	normalized, err := s.normalize(virtualPath)
	if err != nil {
		return ErrAccessDenied
	}
	s.cwd = s.ToSystem(normalized)
	return nil
}

// SetHome resolves virtualPath and, on success, replaces home with the
// normalized result. Any translation error becomes ErrAccessDenied.
func (s *Sandbox) SetHome(virtualPath string) error {
	normalized, err := s.normalize(virtualPath)
	if err != nil {
		return ErrAccessDenied
	}
	s.home = s.ToSystem(normalized)
	return nil
}
