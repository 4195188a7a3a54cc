package pcesfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/stream"
)

// ListFiles returns the event stream files in dir, sorted by name. File names
// are expected to sort in chronological order; this is not checked.
func ListFiles(dir, suffix string) ([]string, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stream.ErrIO, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// FindFiles returns the files of dir starting with the earliest one that may
// contain records at or after bound. Only the first event of each file is
// read, so the search costs O(log n) file opens.
func FindFiles(dir, suffix string, bound param.LowerBound) ([]string, error) {
	files, err := ListFiles(dir, suffix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrNotFound, suffix, dir)
	}
	start, err := searchStart(files, bound)
	if err != nil {
		return nil, err
	}
	return files[start:], nil
}

func searchStart(files []string, bound param.LowerBound) (int, error) {
	if param.IsUnbounded(bound) {
		return 0, nil
	}

	first, err := FirstEvent(files[0])
	if err != nil {
		return 0, err
	}
	if first == nil {
		return 0, fmt.Errorf("%w: %s has no events", ErrNotFound, files[0])
	}
	switch c := bound.Compare(first.Consensus); {
	case c == 0:
		return 0, nil
	case c > 0:
		return 0, fmt.Errorf("%w: %s precedes first event of %s (round %d)", ErrNotFound, bound, files[0], first.Round())
	}

	// files[0] starts before the bound. Find the last file whose first event
	// is still before the search bound.
	search := param.SearchBound(bound)
	if search.Compare(first.Consensus) >= 0 {
		return 0, nil
	}
	lo, hi := 0, len(files)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		ev, err := FirstEvent(files[mid])
		if err != nil {
			return 0, err
		}
		if ev != nil && search.Compare(ev.Consensus) < 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// FirstEvent returns the first event of a file, or nil if the file holds
// none. The file is decoded tolerantly so that a crash tail can be peeked.
func FirstEvent(path string) (*param.PersistedEvent, error) {
	it, err := OpenFile(path, true)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	ev, err := it.Peek()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return ev, err
}
