package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"coredb/file"
	"coredb/wal"
)

func newTestWAL(t *testing.T) *wal.Manager {
	t.Helper()
	fm, err := file.NewManager(t.TempDir(), 400)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	lm, err := wal.NewManager(fm, "test.log")
	require.NoError(t, err)
	return lm
}

func readBack(t *testing.T, lm *wal.Manager) LogRecord {
	t.Helper()
	it, err := lm.Iterator()
	require.NoError(t, err)
	require.True(t, it.HasNext())
	bytes, err := it.Next()
	require.NoError(t, err)
	rec, err := CreateLogRecord(bytes)
	require.NoError(t, err)
	return rec
}

func TestCheckpointRecordRoundTrip(t *testing.T) {
	lm := newTestWAL(t)
	_, err := WriteCheckpointToLog(lm)
	require.NoError(t, err)

	rec := readBack(t, lm)
	require.Equal(t, Checkpoint, rec.Op())
	require.Equal(t, -1, rec.TxNumber())
	require.Equal(t, "<CHECKPOINT>", rec.String())
}

func TestStartRecordRoundTrip(t *testing.T) {
	lm := newTestWAL(t)
	_, err := WriteStartToLog(lm, 42)
	require.NoError(t, err)

	rec := readBack(t, lm)
	require.Equal(t, Start, rec.Op())
	require.Equal(t, 42, rec.TxNumber())
}

func TestCommitAndRollbackRecordRoundTrip(t *testing.T) {
	lm := newTestWAL(t)
	_, err := WriteCommitToLog(lm, 7)
	require.NoError(t, err)
	_, err = WriteRollbackToLog(lm, 8)
	require.NoError(t, err)

	// newest first: rollback, then commit
	rollback := readBack(t, lm)
	require.Equal(t, Rollback, rollback.Op())
	require.Equal(t, 8, rollback.TxNumber())

	it, err := lm.Iterator()
	require.NoError(t, err)
	_, err = it.Next() // skip the rollback record
	require.NoError(t, err)
	require.True(t, it.HasNext())
	bytes, err := it.Next()
	require.NoError(t, err)
	commit, err := CreateLogRecord(bytes)
	require.NoError(t, err)
	require.Equal(t, Commit, commit.Op())
	require.Equal(t, 7, commit.TxNumber())
}

func TestSetIntRecordRoundTrip(t *testing.T) {
	lm := newTestWAL(t)
	block := file.NewBlockID("data", 3)
	_, err := WriteSetIntToLog(lm, 5, block, 16, 999)
	require.NoError(t, err)

	rec := readBack(t, lm)
	require.Equal(t, SetIntType, rec.Op())
	require.Equal(t, 5, rec.TxNumber())

	sir, ok := rec.(*SetIntRecord)
	require.True(t, ok)
	require.Equal(t, block, sir.block)
	require.Equal(t, 16, sir.offset)
	require.EqualValues(t, 999, sir.val)
}

func TestSetStringRecordRoundTrip(t *testing.T) {
	lm := newTestWAL(t)
	block := file.NewBlockID("data", 3)
	_, err := WriteSetStringToLog(lm, 5, block, 16, "hello")
	require.NoError(t, err)

	rec := readBack(t, lm)
	require.Equal(t, SetStringType, rec.Op())

	ssr, ok := rec.(*SetStringRecord)
	require.True(t, ok)
	require.Equal(t, "hello", ssr.val)
}
