package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	fm, err := NewManager(dir, 400)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })
	return fm, dir
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	fm, dir := newTestManager(t)
	require.True(t, fm.IsNew())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestManagerReadWriteRoundTrip(t *testing.T) {
	fm, _ := newTestManager(t)

	blk, err := fm.Append("students.tbl")
	require.NoError(t, err)

	out := NewPage(fm.BlockSize())
	require.NoError(t, out.SetString(0, "joe"))
	require.NoError(t, fm.Write(blk, out))

	in := NewPage(fm.BlockSize())
	require.NoError(t, fm.Read(blk, in))
	require.Equal(t, "joe", in.GetString(0))
}

func TestManagerAppendGrowsLength(t *testing.T) {
	fm, _ := newTestManager(t)

	length, err := fm.Length("t.tbl")
	require.NoError(t, err)
	require.Equal(t, 0, length)

	blk0, err := fm.Append("t.tbl")
	require.NoError(t, err)
	require.Equal(t, 0, blk0.Num)

	blk1, err := fm.Append("t.tbl")
	require.NoError(t, err)
	require.Equal(t, 1, blk1.Num)

	length, err = fm.Length("t.tbl")
	require.NoError(t, err)
	require.Equal(t, 2, length)
}

func TestManagerTruncate(t *testing.T) {
	fm, _ := newTestManager(t)

	for i := 0; i < 5; i++ {
		_, err := fm.Append("t.tbl")
		require.NoError(t, err)
	}
	require.NoError(t, fm.Truncate("t.tbl", 2))

	length, err := fm.Length("t.tbl")
	require.NoError(t, err)
	require.Equal(t, 2, length)
}

func TestNewManagerRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tempxyz"), []byte("junk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.tbl"), []byte("junk"), 0644))

	fm, err := NewManager(dir, 400)
	require.NoError(t, err)
	defer fm.Close()

	_, err = os.Stat(filepath.Join(dir, "tempxyz"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "keep.tbl"))
	require.NoError(t, err)
}

func TestNewManagerRejectsSecondOpener(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewManager(dir, 400)
	require.NoError(t, err)
	defer fm.Close()

	_, err = NewManager(dir, 400)
	require.Error(t, err)
}

func TestManagerStats(t *testing.T) {
	fm, _ := newTestManager(t)

	blk, err := fm.Append("t.tbl")
	require.NoError(t, err)

	p := NewPage(fm.BlockSize())
	require.NoError(t, fm.Write(blk, p))
	require.NoError(t, fm.Read(blk, p))

	reads, writes := fm.Stats()
	require.GreaterOrEqual(t, reads, int64(1))
	require.GreaterOrEqual(t, writes, int64(2))
}
