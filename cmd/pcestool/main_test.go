package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run 执行一条 pcestool 命令并返回标准输出与标准错误
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// lastField 返回输出中最后一个以空白分隔的字段
func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func TestGenVerifyRepair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	out, _, err := run(t, "gen", "--dir", dir, "--files", "3", "--events", "8", "--per-round", "4", "--crash")
	require.NoError(t, err)
	final := lastField(out)
	require.True(t, strings.HasPrefix(final, "SHA-384:"), out)

	t.Run("Ls", func(t *testing.T) {
		out, _, err := run(t, "ls", "--dir", dir)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[1], " ok")
		assert.Contains(t, lines[3], "damaged")
		assert.Contains(t, lines[1], "0.1.0")
	})

	t.Run("Verify Damaged", func(t *testing.T) {
		out, _, err := run(t, "verify", "--dir", dir, "--expect", final)
		require.NoError(t, err)
		assert.Contains(t, out, "damaged: 1 events: 24 complete rounds: 6")
		assert.Contains(t, out, "running hash: "+final)
	})

	t.Run("Verify Wrong Expectation", func(t *testing.T) {
		_, _, err := run(t, "verify", "--dir", dir, "--expect", strings.Repeat("ab", 48))
		assert.ErrorIs(t, err, errVerifyFailed)
	})

	t.Run("Checkpoints", func(t *testing.T) {
		cps := filepath.Join(t.TempDir(), "checkpoints.gob")
		out, _, err := run(t, "verify", "--dir", dir, "--checkpoints", cps, "--record")
		require.NoError(t, err)
		assert.Contains(t, out, "0 matched, 6 unknown, 6 recorded")

		out, _, err = run(t, "verify", "--dir", dir, "--checkpoints", cps)
		require.NoError(t, err)
		assert.Contains(t, out, "6 matched, 0 unknown, 0 recorded")

		// 另一条链不能使用同一个检查点文件
		other := filepath.Join(t.TempDir(), "other")
		_, _, err = run(t, "gen", "--dir", other, "--files", "1", "--events", "4", "--seed", "2")
		require.NoError(t, err)
		_, _, err = run(t, "verify", "--dir", other, "--checkpoints", cps)
		assert.Error(t, err)
	})

	t.Run("Dump", func(t *testing.T) {
		out, stderr, err := run(t, "dump", "--dir", dir, "--round", "3", "--filter", "creator == 0", "--limit", "2", "-o", "json")
		require.NoError(t, err)
		dec := json.NewDecoder(strings.NewReader(out))
		n := 0
		for dec.More() {
			var v eventView
			require.NoError(t, dec.Decode(&v))
			assert.Equal(t, int64(0), v.Creator)
			assert.GreaterOrEqual(t, v.Round, int64(3))
			n++
		}
		assert.Equal(t, 2, n)
		assert.Contains(t, stderr, "printed 2 event(s)")

		_, _, err = run(t, "dump", "--dir", dir, "-o", "xml")
		assert.Error(t, err)
		_, _, err = run(t, "dump", "--dir", dir, "--filter", "round +")
		assert.Error(t, err)
	})

	t.Run("Repair", func(t *testing.T) {
		out, _, err := run(t, "repair", "--dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "repaired, 8 event(s), terminal hash "+final)

		out, _, err = run(t, "repair", "--dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "already complete")

		out, _, err = run(t, "verify", "--dir", dir, "--expect", final)
		require.NoError(t, err)
		assert.Contains(t, out, "damaged: 0")
	})
}

func TestRepairFileAnomaly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.evts")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	_, _, err := run(t, "repair", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed hash")
}

func TestInvalidFlags(t *testing.T) {
	_, _, err := run(t, "gen", "--dir", t.TempDir(), "--files", "0")
	assert.Error(t, err)
	_, _, err = run(t, "ls", "--dir", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	_, _, err = run(t, "verify", "--dir", t.TempDir(), "--record")
	assert.Error(t, err)
	_, _, err = run(t, "ls", "--dir", t.TempDir(), "--digest", "md5")
	assert.Error(t, err)
}
