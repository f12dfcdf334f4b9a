package sstable

import (
	"bufio"
	"os"

	"github.com/dnguyen-labs/minikv/internal/bufpool"
	"github.com/dnguyen-labs/minikv/internal/kverrors"
	"github.com/dnguyen-labs/minikv/internal/record"
	"go.uber.org/zap"
)

// Writer serializes an already-sorted, already-deduplicated sequence of
// (key, value) lines into an SST file. It writes under a temporary name
// and renames into place on Finish, so a reader never observes a
// partially-written file under its final name.
type Writer struct {
	ord      Ordinal
	dir      string
	tmpPath  string
	finalPath string
	f        *os.File
	bw       *bufio.Writer
	finished bool
}

// NewWriter opens a temp file under dir for ord and returns a Writer ready
// for Add calls.
func NewWriter(dir string, ord Ordinal) (*Writer, error) {
	tmpPath := TempPath(dir, ord)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, kverrors.Wrap(kverrors.Io, "open sst temp file", err)
	}
	return &Writer{
		ord:       ord,
		dir:       dir,
		tmpPath:   tmpPath,
		finalPath: Path(dir, ord),
		f:         f,
		bw:        bufio.NewWriter(f),
	}, nil
}

// Add appends one (key, value) line. The caller must supply keys in
// strictly ascending order; Add does not re-sort or deduplicate.
func (w *Writer) Add(key, value string) error {
	line := record.EncodeSST(key, value)
	defer bufpool.Put(line)
	if _, err := w.bw.Write(line); err != nil {
		return kverrors.Wrap(kverrors.Io, "write sst line", err)
	}
	return nil
}

// Finish flushes, syncs, closes, and atomically renames the temp file into
// its final ordinal-named path, making it visible in the SST stack.
func (w *Writer) Finish() (Ordinal, error) {
	if w.finished {
		return w.ord, kverrors.New(kverrors.IllegalState, "sst writer already finished")
	}
	if err := w.bw.Flush(); err != nil {
		return 0, kverrors.Wrap(kverrors.Io, "flush sst", err)
	}
	if err := w.f.Sync(); err != nil {
		return 0, kverrors.Wrap(kverrors.Io, "sync sst", err)
	}
	if err := w.f.Close(); err != nil {
		return 0, kverrors.Wrap(kverrors.Io, "close sst", err)
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return 0, kverrors.Wrap(kverrors.Io, "rename sst into place", err)
	}
	w.finished = true
	return w.ord, nil
}

// Abort gives up on the write, removing the temp file. There is no
// guarantee the temp file existed or is removable; errors are logged, not
// returned, since Abort is typically called from a defer during error
// handling where the original error takes precedence.
func (w *Writer) Abort() {
	if w.finished {
		return
	}
	_ = w.f.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("failed to remove aborted sst temp file", zap.String("path", w.tmpPath), zap.Error(err))
	}
}
