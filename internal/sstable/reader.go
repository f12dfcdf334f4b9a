package sstable

import (
	"bufio"
	"io"
	"os"

	"github.com/dnguyen-labs/minikv/internal/kverrors"
	"github.com/dnguyen-labs/minikv/internal/record"
	"go.uber.org/zap"
)

// LookupResult is the three-way outcome of Reader.Lookup.
type LookupResult byte

const (
	NotFound LookupResult = iota
	FoundValue
	FoundTombstone
)

// Reader gives lazy in-order access to an immutable SST file, plus a
// point Lookup. Readers never modify the file.
type Reader struct {
	Ordinal Ordinal
	path    string

	haveRange      bool
	minKey, maxKey string
}

// Open opens an existing SST file for reading. The file is not fully read
// here — min/max key metadata is populated lazily on first Lookup.
func Open(dir string, ord Ordinal) *Reader {
	return &Reader{Ordinal: ord, path: Path(dir, ord)}
}

// Each streams every (key, value) line in the file, in ascending key
// order, invoking fn until it returns false or the file is exhausted. A
// trailing line without a newline is decoded like any other line; any
// line that fails to decode ends the scan with a Corruption error.
func (r *Reader) Each(fn func(key, value string) bool) error {
	f, err := os.Open(r.path)
	if err != nil {
		return kverrors.Wrap(kverrors.Io, "open sst", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		key, value, err := record.DecodeSST(line)
		if err != nil {
			zap.L().Warn("malformed sst line", zap.String("path", r.path), zap.Error(err))
			return kverrors.Wrap(kverrors.Corruption, "malformed sst line", err)
		}
		if !fn(key, value) {
			return nil
		}
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return kverrors.Wrap(kverrors.Io, "scan sst", err)
	}
	return nil
}

// KeyRange lazily scans the file once to learn its minimum and maximum
// key, mirroring original_source/minikv/sst.py's pruning cache.
func (r *Reader) KeyRange() (min, max string, err error) {
	if r.haveRange {
		return r.minKey, r.maxKey, nil
	}

	var first, last string
	haveAny := false
	err = r.Each(func(key, value string) bool {
		if !haveAny {
			first = key
			haveAny = true
		}
		last = key
		return true
	})
	if err != nil {
		return "", "", err
	}
	if haveAny {
		r.minKey, r.maxKey, r.haveRange = first, last, true
	}
	return r.minKey, r.maxKey, nil
}

// Lookup performs a point lookup for key, pruning the scan using the
// file's cached key range before falling back to a linear scan.
func (r *Reader) Lookup(key string) (value string, result LookupResult, err error) {
	minKey, maxKey, err := r.KeyRange()
	if err != nil {
		return "", NotFound, err
	}
	if minKey == "" && maxKey == "" {
		return "", NotFound, nil
	}
	if key < minKey || key > maxKey {
		return "", NotFound, nil
	}

	var found string
	var hit bool
	err = r.Each(func(k, v string) bool {
		if k == key {
			found = v
			hit = true
			return false
		}
		return k < key
	})
	if err != nil {
		return "", NotFound, err
	}
	if !hit {
		return "", NotFound, nil
	}
	if record.IsTombstone(found) {
		return "", FoundTombstone, nil
	}
	return found, FoundValue, nil
}
