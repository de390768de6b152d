package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPageIntRoundTrip(t *testing.T) {
	p := NewPage(400)
	require.NoError(t, p.SetInt(80, 42))
	require.EqualValues(t, 42, p.GetInt(80))
}

func TestPageStringRoundTrip(t *testing.T) {
	p := NewPage(400)
	require.NoError(t, p.SetString(20, "students"))
	require.Equal(t, "students", p.GetString(20))
}

func TestPageBytesRoundTrip(t *testing.T) {
	p := NewPage(400)
	b := []byte{1, 2, 3, 4, 5}
	require.NoError(t, p.SetBytes(0, b))
	require.Equal(t, b, p.GetBytes(0))
}

func TestPageBoolRoundTrip(t *testing.T) {
	p := NewPage(400)
	require.NoError(t, p.SetBool(10, true))
	require.True(t, p.GetBool(10))
	require.NoError(t, p.SetBool(10, false))
	require.False(t, p.GetBool(10))
}

func TestPageTimeRoundTrip(t *testing.T) {
	p := NewPage(400)
	now := time.Now().Round(time.Millisecond)
	require.NoError(t, p.SetTime(0, now))
	require.True(t, now.Equal(p.GetTime(0)))
}

func TestPageSetIntOutOfBounds(t *testing.T) {
	p := NewPage(16)
	err := p.SetInt(13, 1)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestPageSetBytesOutOfBounds(t *testing.T) {
	p := NewPage(8)
	err := p.SetBytes(0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMaxLengthASCII(t *testing.T) {
	require.Equal(t, 4+9, MaxLength(9))
}

func TestPageFromBytesSharesBackingArray(t *testing.T) {
	buf := make([]byte, 400)
	p := NewPageFromBytes(buf)
	require.NoError(t, p.SetInt(0, 7))
	q := NewPageFromBytes(buf)
	require.EqualValues(t, 7, q.GetInt(0))
}
