package jitcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testBlock struct {
	start, end uint32
	codeSize   int
}

func (b *testBlock) Span() (uint32, uint32) { return b.start, b.end }

func (b *testBlock) CodeSize() int { return b.codeSize }

func newTestBlock(start, size uint32) *testBlock {
	return &testBlock{start: start, end: start + size, codeSize: int(size) * 10}
}

func TestCache_Lookup(t *testing.T) {
	c := New[*testBlock](0, nil)
	_, ok := c.Lookup(0x100)
	require.False(t, ok)

	b := newTestBlock(0x100, 8)
	c.Insert(b)
	actual, ok := c.Lookup(0x100)
	require.True(t, ok)
	require.Equal(t, b, actual)

	// Only the start address is a key.
	_, ok = c.Lookup(0x104)
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
	require.Equal(t, 80, c.CodeBytes())
}

func TestCache_Insert_replaces(t *testing.T) {
	var evicted []*testBlock
	c := New(0, func(b *testBlock) { evicted = append(evicted, b) })
	old := newTestBlock(0x100, 8)
	c.Insert(old)
	replacement := newTestBlock(0x100, 4)
	c.Insert(replacement)

	require.Equal(t, []*testBlock{old}, evicted)
	actual, ok := c.Lookup(0x100)
	require.True(t, ok)
	require.Equal(t, replacement, actual)
	require.Equal(t, 1, c.Len())
	require.Equal(t, 40, c.CodeBytes())
}

func TestCache_Insert_budget(t *testing.T) {
	var evicted []*testBlock
	c := New(200, func(b *testBlock) { evicted = append(evicted, b) })
	first, second := newTestBlock(0x100, 8), newTestBlock(0x200, 8)
	c.Insert(first)
	c.Insert(second)
	require.Equal(t, 160, c.CodeBytes())
	require.Empty(t, evicted)

	third := newTestBlock(0x300, 8)
	c.Insert(third)
	require.ElementsMatch(t, []*testBlock{first, second}, evicted)
	require.Equal(t, 1, c.Len())
	require.Equal(t, 80, c.CodeBytes())
	_, ok := c.Lookup(0x300)
	require.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	blocks := []*testBlock{
		newTestBlock(0x100, 0x10), // [0x100, 0x110)
		newTestBlock(0x110, 0x40), // [0x110, 0x150)
		newTestBlock(0x150, 0x08), // [0x150, 0x158)
		newTestBlock(0x200, 0x04), // [0x200, 0x204)
	}
	for _, tc := range []struct {
		name          string
		address, size uint32
		expRemoved    []int
	}{
		{name: "empty range", address: 0x100, size: 0},
		{name: "before everything", address: 0, size: 0x100},
		{name: "first word", address: 0x100, size: 4, expRemoved: []int{0}},
		{name: "inside a long block", address: 0x140, size: 4, expRemoved: []int{1}},
		{name: "boundary", address: 0x10c, size: 8, expRemoved: []int{0, 1}},
		{name: "end is exclusive", address: 0x158, size: 0xa8},
		{name: "everything", address: 0, size: 0xffffffff, expRemoved: []int{0, 1, 2, 3}},
		{name: "gap", address: 0x160, size: 0x20},
		{name: "last", address: 0x203, size: 0x100, expRemoved: []int{3}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var evicted []*testBlock
			c := New(0, func(b *testBlock) { evicted = append(evicted, b) })
			for _, b := range blocks {
				c.Insert(b)
			}

			require.Equal(t, len(tc.expRemoved), c.Invalidate(tc.address, tc.size))
			var exp []*testBlock
			for _, i := range tc.expRemoved {
				exp = append(exp, blocks[i])
			}
			require.Equal(t, exp, evicted)
			require.Equal(t, len(blocks)-len(exp), c.Len())
			for _, b := range exp {
				_, ok := c.Lookup(b.start)
				require.False(t, ok)
			}
		})
	}
}

func TestCache_Clear(t *testing.T) {
	evicted := 0
	c := New(0, func(*testBlock) { evicted++ })
	for i := uint32(0); i < 100; i++ {
		c.Insert(newTestBlock(i*0x100, 0x20))
	}
	c.Clear()
	require.Equal(t, 100, evicted)
	require.Zero(t, c.Len())
	require.Zero(t, c.CodeBytes())
	require.Zero(t, c.Invalidate(0, 0xffffffff))
}
