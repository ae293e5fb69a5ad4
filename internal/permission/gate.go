// Package permission implements the Permission Gate: the single
// choke-point every filesystem or process side effect must pass through
// before it touches the host. It resolves paths to canonical absolute
// form, follows symlinks to a bounded depth, and authorizes them against
// an ordered allow/deny prefix list set once at startup.
package permission

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
)

// maxSymlinkDepth bounds symlink resolution so a cycle can never hang
// the gate or be used to probe the filesystem indefinitely.
const maxSymlinkDepth = 40

// Action distinguishes why a path is being authorized, for diagnostics
// only — the match algorithm itself is identical across actions.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionExec  Action = "exec"
)

// Rule is one entry of the Permission Set: a canonicalised absolute path
// prefix marked allow or deny.
type Rule struct {
	Prefix string
	Allow  bool
}

// Gate holds the Permission Set. It is built once at startup from
// configuration and never mutated afterward; all of its exported methods
// are safe for concurrent use without locking because the underlying
// slice is read-only.
type Gate struct {
	rules       []Rule
	trustedExec bool
}

// Config configures a new Gate.
type Config struct {
	// Rules is the ordered allow/deny prefix list. Order does not affect
	// matching (longest-prefix always wins, deny breaks ties) but is
	// preserved for diagnostics.
	Rules []Rule
	// TrustedExec disables the requirement that a resolved binary's
	// directory itself be allow-listed for authorize_exec.
	TrustedExec bool
}

// New builds a Gate from cfg. Every rule's Prefix is canonicalised
// (made absolute against the process cwd, cleaned, and symlink-resolved
// via Canon) before being stored.
func New(cfg Config) (*Gate, error) {
	g := &Gate{trustedExec: cfg.TrustedExec}
	for _, r := range cfg.Rules {
		abs, err := Canon(r.Prefix)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.InvalidArguments, err, "invalid allow-path", r.Prefix)
		}
		g.rules = append(g.rules, Rule{Prefix: filepath.Clean(abs), Allow: r.Allow})
	}
	return g, nil
}

// AuthorizeRead resolves path and authorizes it for reading.
func (g *Gate) AuthorizeRead(path string) (string, error) {
	return g.authorize(path, ActionRead)
}

// AuthorizeWrite resolves path and authorizes it for writing.
func (g *Gate) AuthorizeWrite(path string) (string, error) {
	return g.authorize(path, ActionWrite)
}

// AuthorizeExec resolves the binary named by argv[0] against PATH (or
// uses it directly if it already contains a path separator), authorizes
// its containing directory, and authorizes cwd. It returns the
// canonical cwd to run the command in.
func (g *Gate) AuthorizeExec(argv []string, cwd string) (string, error) {
	if len(argv) == 0 {
		return "", coreerrors.New(coreerrors.InvalidArguments, "empty command", "")
	}

	canonCwd, err := g.authorize(cwd, ActionExec)
	if err != nil {
		return "", err
	}

	bin := argv[0]
	var resolved string
	if strings.ContainsRune(bin, os.PathSeparator) {
		resolved = bin
	} else {
		resolved, err = exec.LookPath(bin)
		if err != nil {
			return "", coreerrors.Wrap(coreerrors.ExecutionFailed, err, "binary not found on PATH", bin)
		}
	}

	if !g.trustedExec {
		binDir := filepath.Dir(resolved)
		if _, err := g.authorize(binDir, ActionExec); err != nil {
			return "", err
		}
	}

	return canonCwd, nil
}

// authorize canonicalises path (absolute form, bounded symlink
// resolution) and matches it against the Permission Set by longest
// prefix, denying ties in favour of any deny rule. A path that escapes
// the allowlist after symlink resolution is denied even if its literal
// form matched.
func (g *Gate) authorize(path string, action Action) (string, error) {
	canon, err := Canon(path)
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.PermissionDenied, err, "cannot resolve path", path)
	}

	if !g.matches(canon) {
		return "", coreerrors.New(coreerrors.PermissionDenied, "path not permitted for "+string(action), canon)
	}

	return canon, nil
}

// matches reports whether canon is allowed by the longest matching
// prefix rule; default is deny.
func (g *Gate) matches(canon string) bool {
	bestLen := -1
	allowed := false
	for _, r := range g.rules {
		if !isPrefixPath(r.Prefix, canon) {
			continue
		}
		l := len(r.Prefix)
		switch {
		case l > bestLen:
			bestLen = l
			allowed = r.Allow
		case l == bestLen && !r.Allow:
			// Tie: a deny entry wins.
			allowed = false
		}
	}
	return allowed
}

// isPrefixPath reports whether prefix is a prefix of or equal to target
// along path-element boundaries (so "/allowed2" does not match prefix
// "/allowed").
func isPrefixPath(prefix, target string) bool {
	if prefix == target {
		return true
	}
	if prefix == string(os.PathSeparator) {
		return true
	}
	return strings.HasPrefix(target, prefix+string(os.PathSeparator))
}

// Canon resolves path to an absolute, symlink-resolved canonical form.
// It is idempotent: Canon(Canon(p)) == Canon(p) for any p that exists.
// Symlink resolution stops, without error, at the first path component
// that does not exist (so a not-yet-created destination file can still
// be authorized for writing).
func Canon(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return resolveSymlinks(filepath.Clean(abs), 0)
}

func resolveSymlinks(path string, depth int) (string, error) {
	if depth > maxSymlinkDepth {
		return "", coreerrors.New(coreerrors.PermissionDenied, "symlink resolution depth exceeded", path)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Resolve the parent and re-attach the missing leaf so a
			// not-yet-created file can still be canonicalised.
			parent := filepath.Dir(path)
			if parent == path {
				return path, nil
			}
			resolvedParent, perr := resolveSymlinks(parent, depth+1)
			if perr != nil {
				return "", perr
			}
			return filepath.Join(resolvedParent, filepath.Base(path)), nil
		}
		return "", err
	}

	if info.Mode()&os.ModeSymlink == 0 {
		// The leaf itself is not a link, but a directory above it may be:
		// resolve the parent so a path reached through a symlinked
		// directory is reported at its real location.
		parent := filepath.Dir(path)
		if parent == path {
			return path, nil
		}
		resolvedParent, perr := resolveSymlinks(parent, depth)
		if perr != nil {
			return "", perr
		}
		return filepath.Join(resolvedParent, filepath.Base(path)), nil
	}

	target, err := os.Readlink(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return resolveSymlinks(filepath.Clean(target), depth+1)
}
