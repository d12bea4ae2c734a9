// Package jail confines client-supplied paths to a configured root
// directory. Every resolved path is canonicalized before the containment
// check, so neither `..` segments nor symlinked ancestors can name a file
// outside the root.
package jail

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrTraversal marks a path whose canonical form leaves the root
	ErrTraversal = errors.New("path traversal not allowed")
	// ErrNotFound marks a path that cannot be anchored to an existing ancestor
	ErrNotFound = errors.New("no valid parent path found")
)

// Resolve maps a client path onto root and returns the absolute local path
// it names. Targets that do not exist yet resolve through their closest
// existing ancestor, so files and directories can be created without every
// intermediate pre-existing.
func Resolve(raw string, root string) (string, error) {
	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", errors.Wrap(ErrNotFound, "canonicalize root")
	}

	if raw == "" || raw == "/" {
		return canonRoot, nil
	}

	trimmed := strings.TrimLeft(raw, "/")
	candidate := filepath.Join(canonRoot, filepath.FromSlash(trimmed))

	if _, err := os.Stat(candidate); err != nil {
		if os.IsNotExist(err) {
			return resolveMissing(candidate, canonRoot)
		}
		return "", errors.Wrap(err, "stat candidate")
	}

	canonPath, err := canonicalize(candidate)
	if err != nil {
		return "", errors.Wrap(err, "canonicalize candidate")
	}
	if !isWithin(canonRoot, canonPath) {
		return "", ErrTraversal
	}
	return canonPath, nil
}

// resolveMissing anchors a not-yet-existing candidate to its closest
// existing ancestor, verifies the ancestor sits inside the root, then
// re-appends the missing components in their original order.
func resolveMissing(candidate string, canonRoot string) (string, error) {
	current := candidate
	var missing []string

	for {
		if _, err := os.Stat(current); err == nil {
			break
		}
		missing = append(missing, filepath.Base(current))
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotFound
		}
		current = parent
	}

	canonParent, err := canonicalize(current)
	if err != nil {
		return "", errors.Wrap(err, "canonicalize ancestor")
	}
	if !isWithin(canonRoot, canonParent) {
		return "", ErrTraversal
	}

	result := canonParent
	for i := len(missing) - 1; i >= 0; i-- {
		result = filepath.Join(result, missing[i])
	}
	return result, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// isWithin reports whether candidate equals root or descends from it
func isWithin(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}
