package validate

import (
	"path"
	"strings"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// RejectPathTraversal fails on an absolute vault path or one that, after
// path.Clean, climbs above its root ("..", "../x"); an inner ".." that
// stays inside the root, as in "a/../b", is accepted. This is the one
// structural property validated against the standard library:
// path.Clean is sufficient here because vault paths are a flat relative
// string with no third-party parsing concern behind them.
func RejectPathTraversal(p string) error {
	if strings.HasPrefix(p, "/") {
		return contracts.InvalidInput("vault_path", "must be relative")
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return contracts.InvalidInput("vault_path", "must not contain path traversal components")
	}
	return nil
}
