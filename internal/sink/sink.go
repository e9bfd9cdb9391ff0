// Package sink stages file writes under an output directory.
//
// Content is written to a temporary file next to its final path and renamed
// into place on Commit, so a failed or interrupted write is never visible at
// the final path. All filesystem access goes through an os.Root, which keeps
// writes confined to the output directory.
package sink

import (
	"errors"
	"io"
)

// ErrOverflow indicates a counter exceeded its maximum value.
var ErrOverflow = errors.New("counter overflow")

// Committer is a writer that can be committed or discarded.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content visible at its final path.
	Commit() error

	// Discard aborts the write and removes any staged content.
	Discard() error
}

// CountingWriter wraps a writer and counts bytes written.
type CountingWriter struct {
	W io.Writer
	N uint64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	if n > 0 {
		//nolint:gosec // n is guaranteed non-negative by io.Writer contract
		if cw.N > ^uint64(0)-uint64(n) {
			return n, ErrOverflow
		}
		cw.N += uint64(n) //nolint:gosec // overflow checked above
	}
	return n, err
}
