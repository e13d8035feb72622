// Package iox holds small I/O helpers shared by the mesh readers, writers
// and storage backends.
package iox

import (
	"fmt"
	"io"
	"os"
)

// Stdin is the path that OpenInput maps to standard input.
const Stdin = "-"

// DiscardClose closes c and ignores the error. For read paths only:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseInto closes c and stores the close error in *errp unless *errp
// already holds an error. For write paths, where a failed close loses data:
//
//	defer iox.CloseInto(&err, f, "mesh file")
func CloseInto(errp *error, c io.Closer, what string) {
	if cerr := c.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("close %s: %w", what, cerr)
	}
}

// OpenInput opens path for reading, or returns standard input for Stdin.
// Closing the standard input reader is a no-op.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
