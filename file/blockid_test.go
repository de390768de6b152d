package file

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockIDEquality(t *testing.T) {
	a := NewBlockID("t.tbl", 3)
	b := NewBlockID("t.tbl", 3)
	c := NewBlockID("t.tbl", 4)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestBlockIDAsMapKey(t *testing.T) {
	m := map[BlockID]int{}
	m[NewBlockID("t.tbl", 0)] = 1
	m[NewBlockID("t.tbl", 1)] = 2

	require.Equal(t, 1, m[NewBlockID("t.tbl", 0)])
	require.Equal(t, 2, m[NewBlockID("t.tbl", 1)])
}

func TestBlockIDString(t *testing.T) {
	b := NewBlockID("t.tbl", 5)
	require.Equal(t, "[file t.tbl, block 5]", b.String())
}
