package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// DiskPublisher writes trees to a local directory. The new tree is written
// to a temporary sibling directory which then replaces the destination, so
// readers never observe a partially written tree.
type DiskPublisher struct {
	dir string

	mu   sync.Mutex
	last filetree.Fingerprint
}

// NewDiskPublisher creates a publisher writing to dir.
func NewDiskPublisher(dir string) *DiskPublisher {
	return &DiskPublisher{dir: filepath.Clean(dir)}
}

// Destination returns the destination directory.
func (p *DiskPublisher) Destination() string { return p.dir }

// Publish replaces the destination directory with tree. Publishing a tree
// identical to the directory's current contents writes nothing.
func (p *DiskPublisher) Publish(ctx context.Context, tree *filetree.Tree) (*Receipt, error) {
	logger := ctxlog.FromContext(ctx).With("destination", p.dir)
	p.mu.Lock()
	defer p.mu.Unlock()

	receipt := &Receipt{Destination: p.dir, Fingerprint: tree.Fingerprint(), Files: tree.Len()}
	if p.upToDate(tree) {
		receipt.Unchanged = true
		logger.Debug("Destination already up to date.", "fingerprint", tree.Fingerprint().Short(12))
		return receipt, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parent, base := filepath.Dir(p.dir), filepath.Base(p.dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, &filetree.IOError{Path: parent, Err: err}
	}
	staging, err := os.MkdirTemp(parent, "."+base+"-staging-*")
	if err != nil {
		return nil, &filetree.IOError{Path: parent, Err: err}
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		os.RemoveAll(staging)
		return nil, &filetree.IOError{Path: staging, Err: err}
	}
	if err := filetree.WriteDirectory(tree, staging); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("failed to stage output: %w", err)
	}

	removed, err := p.swap(logger, tree, staging, parent, base)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	p.last = tree.Fingerprint()
	receipt.Written = tree.Len()
	receipt.Removed = removed
	logger.Debug("Published to disk.", "files", receipt.Files, "fingerprint", p.last.Short(12))
	return receipt, nil
}

// upToDate reports whether the destination holds tree. The destination is
// read back on every call so that edits made outside the publisher are
// repaired by the next publish.
func (p *DiskPublisher) upToDate(tree *filetree.Tree) bool {
	existing, err := filetree.FromDirectory(p.dir)
	if err != nil {
		p.last = ""
		return false
	}
	p.last = existing.Fingerprint()
	return p.last == tree.Fingerprint()
}

// swap moves staging into place and deletes the previous destination. It
// returns the number of files of the previous tree that are gone.
func (p *DiskPublisher) swap(logger *slog.Logger, tree *filetree.Tree, staging, parent, base string) (int, error) {
	previous, err := filetree.FromDirectory(p.dir)
	var ioErr *filetree.IOError
	switch {
	case err == nil:
	case errors.As(err, &ioErr) && errors.Is(ioErr.Err, os.ErrNotExist):
		if err := os.Rename(staging, p.dir); err != nil {
			return 0, &filetree.IOError{Path: p.dir, Err: err}
		}
		return 0, nil
	default:
		return 0, err
	}

	retired, err := os.MkdirTemp(parent, "."+base+"-old-*")
	if err != nil {
		return 0, &filetree.IOError{Path: parent, Err: err}
	}
	// Rename needs a free target name.
	if err := os.Remove(retired); err != nil {
		return 0, &filetree.IOError{Path: retired, Err: err}
	}
	if err := os.Rename(p.dir, retired); err != nil {
		return 0, &filetree.IOError{Path: p.dir, Err: err}
	}
	if err := os.Rename(staging, p.dir); err != nil {
		if restoreErr := os.Rename(retired, p.dir); restoreErr != nil {
			return 0, errors.Join(&filetree.IOError{Path: p.dir, Err: err}, restoreErr)
		}
		return 0, &filetree.IOError{Path: p.dir, Err: err}
	}
	if err := os.RemoveAll(retired); err != nil {
		logger.Warn("Failed to remove previous output.", "path", retired, "error", err)
	}

	removed := 0
	for _, path := range previous.Paths() {
		if !tree.Has(path) {
			removed++
		}
	}
	return removed, nil
}
