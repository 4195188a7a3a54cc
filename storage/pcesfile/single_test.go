package pcesfile_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/eventgen"
	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/stream"
)

var (
	_ pcesfile.Iterator[*param.PersistedEvent] = (*pcesfile.SingleFileIterator)(nil)
	_ pcesfile.Iterator[*param.PersistedEvent] = (*pcesfile.MultiFileIterator)(nil)
	_ pcesfile.Iterator[*param.PersistedEvent] = (*pcesfile.RunningHashIterator)(nil)
)

// writeRaw 按给定顺序写入任意记录，用于构造不合法的文件
func writeRaw(t *testing.T, path string, objs ...stream.Object) {
	t.Helper()
	var buf bytes.Buffer
	enc, err := stream.NewEncoder(&buf)
	require.NoError(t, err)
	for _, obj := range objs {
		require.NoError(t, enc.Write(obj))
	}
	require.NoError(t, enc.Flush())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func drain[T any](it pcesfile.Iterator[T]) ([]T, error) {
	var out []T
	for {
		v, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

func TestSingleFileIterator(t *testing.T) {
	h := hashing.Default()
	seed := eventgen.Seed(h, "single")
	events := eventgen.New(1).Events(4)
	end, err := hashing.Chain(h, seed, events...)
	require.NoError(t, err)

	t.Run("Well Formed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed, events[0], events[1], events[2], events[3], end)

		it, err := pcesfile.OpenFile(path, false)
		require.NoError(t, err)
		defer it.Close()

		assert.True(t, it.StartHash().Equal(seed))
		assert.Nil(t, it.EndHash(), "terminal hash is unknown until reached")
		got, err := drain[*param.PersistedEvent](it)
		require.NoError(t, err)
		assert.Equal(t, events, got)
		require.NotNil(t, it.EndHash())
		assert.True(t, it.EndHash().Equal(end))
		assert.False(t, it.IsDamaged())
		assert.Equal(t, 4, it.EventCount())
		assert.Equal(t, path, it.Name())
	})

	t.Run("Records After Terminal Hash Are Ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed, events[0], end, events[1])

		it, err := pcesfile.OpenFile(path, false)
		require.NoError(t, err)
		defer it.Close()
		got, err := drain[*param.PersistedEvent](it)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Missing Terminal Hash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed, events[0], events[1])

		it, err := pcesfile.OpenFile(path, false)
		require.NoError(t, err)
		defer it.Close()
		got, err := drain[*param.PersistedEvent](it)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.True(t, it.IsDamaged())
	})

	t.Run("Seed Hash Only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed)

		it, err := pcesfile.OpenFile(path, false)
		require.NoError(t, err)
		defer it.Close()
		ok, err := it.HasNext()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, it.IsDamaged(), "a file with no events and no terminal hash is damaged")
	})

	grammarErrors := []struct {
		name string
		objs []stream.Object
	}{
		{"first record is an event", []stream.Object{events[0], end}},
		{"no events between hashes", []stream.Object{seed, end}},
		{"unknown record", []stream.Object{seed, &stream.Unknown{ClassID: 7, Version: 1}}},
	}
	for _, tt := range grammarErrors {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f.evts")
			writeRaw(t, path, tt.objs...)

			it, err := pcesfile.OpenFile(path, true)
			if err == nil {
				_, err = drain[*param.PersistedEvent](it)
				it.Close()
			}
			assert.ErrorIs(t, err, stream.ErrFormat)
		})
	}

	t.Run("Empty File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := pcesfile.OpenFile(path, false)
		assert.ErrorIs(t, err, stream.ErrTruncated)
		_, err = pcesfile.OpenFile(path, true)
		assert.ErrorIs(t, err, stream.ErrFormat, "an empty file has no seed hash")
	})
}

func TestSingleFileTruncatedAtEveryOffset(t *testing.T) {
	h := hashing.Default()
	seed := eventgen.Seed(h, "truncate")
	events := eventgen.New(2).Events(5)
	dir := t.TempDir()
	paths, _, err := eventgen.WriteDir(dir, h, seed, [][]*param.PersistedEvent{events}, false)
	require.NoError(t, err)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	// 种子哈希之后的任意截断位置：容忍模式读出截断点之前的完整事件
	seedEnd := stream.HeaderSize + 16 + 8 + h.DigestType().Size()
	cutPath := filepath.Join(dir, "cut.evts")
	for cut := seedEnd; cut < len(data); cut++ {
		require.NoError(t, os.WriteFile(cutPath, data[:cut], 0644))

		it, err := pcesfile.OpenFile(cutPath, true)
		require.NoError(t, err, "cut at %d", cut)
		got, err := drain[*param.PersistedEvent](it)
		require.NoError(t, err, "cut at %d", cut)
		require.LessOrEqual(t, len(got), len(events))
		for i, ev := range got {
			assert.Equal(t, events[i], ev, "cut at %d", cut)
		}
		assert.True(t, it.IsDamaged(), "cut at %d", cut)
		it.Close()

		strict, err := pcesfile.OpenFile(cutPath, false)
		require.NoError(t, err)
		_, serr := drain[*param.PersistedEvent](strict)
		strict.Close()
		if serr != nil {
			assert.ErrorIs(t, serr, stream.ErrTruncated, "cut at %d", cut)
		}
	}
}

func TestScanFile(t *testing.T) {
	h := hashing.Default()
	seed := eventgen.Seed(h, "scan")
	events := eventgen.New(3, eventgen.WithEventsPerRound(2)).Events(6)

	t.Run("Intact", func(t *testing.T) {
		dir := t.TempDir()
		paths, end, err := eventgen.WriteDir(dir, h, seed, [][]*param.PersistedEvent{events}, false)
		require.NoError(t, err)

		rep, err := pcesfile.ScanFile(paths[0], h, false)
		require.NoError(t, err)
		assert.Equal(t, 6, rep.Events)
		assert.Equal(t, int64(1), rep.FirstRound)
		assert.Equal(t, int64(3), rep.LastRound)
		assert.True(t, rep.Computed.Equal(end))
		require.NotNil(t, rep.EndHash)
		assert.True(t, rep.EndHash.Equal(end))
		assert.Equal(t, "0.1.0", rep.MinVersion.String())
		assert.False(t, rep.Damaged)

		info, err := os.Stat(paths[0])
		require.NoError(t, err)
		assert.Equal(t, info.Size(), rep.Bytes)
	})

	t.Run("Wrong Terminal Hash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed, events[0], events[1], seed)

		rep, err := pcesfile.ScanFile(path, h, false)
		assert.ErrorIs(t, err, pcesfile.ErrHashMismatch)
		require.NotNil(t, rep)
		assert.Equal(t, 2, rep.Events)
	})

	t.Run("Damaged", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.evts")
		writeRaw(t, path, seed, events[0])

		rep, err := pcesfile.ScanFile(path, h, true)
		require.NoError(t, err)
		assert.True(t, rep.Damaged)
		assert.Nil(t, rep.EndHash)
	})
}

func TestWriter(t *testing.T) {
	h := hashing.Default()
	seed := eventgen.Seed(h, "writer")
	events := eventgen.New(4).Events(3)
	path := filepath.Join(t.TempDir(), "w.evts")

	w, err := pcesfile.CreateFile(path, h, seed)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, w.Append(ev))
	}
	assert.Equal(t, 3, w.EventCount())
	want, err := hashing.Chain(h, seed, events...)
	require.NoError(t, err)
	assert.True(t, w.RunningHash().Equal(want))

	end, err := w.Close()
	require.NoError(t, err)
	assert.True(t, end.Equal(want), "terminal hash is the running hash")
	assert.Error(t, w.Append(events[0]), "append after close fails")
	_, err = w.Close()
	assert.Error(t, err)

	_, err = pcesfile.CreateFile(path, h, seed)
	assert.ErrorIs(t, err, stream.ErrIO, "existing files are never overwritten")
}
