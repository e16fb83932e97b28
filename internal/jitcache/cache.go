// Package jitcache keeps translated blocks ordered by the guest address they start at, so that
// writes to guest code (instruction cache invalidation) can drop every block they overlap.
package jitcache

import "github.com/google/btree"

// Block is the subset of a translated block the cache needs.
type Block interface {
	// Span returns the guest address range [start, end) the block was translated from.
	Span() (start, end uint32)
	// CodeSize returns the number of host code bytes the block occupies.
	CodeSize() int
}

type entry[B Block] struct {
	start, end uint32
	block      B
}

// Cache is a set of translated blocks keyed by their start address. It must not be used concurrently.
type Cache[B Block] struct {
	tree *btree.BTreeG[entry[B]]
	// maxSpan is the largest guest size of any block inserted since the last Clear.
	// Invalidate only has to look that far back for blocks overlapping the range.
	maxSpan uint32
	// budget is the maximum number of host code bytes held, zero meaning unbounded.
	budget    int
	codeBytes int
	onEvict   func(B)
}

// New returns an empty Cache holding at most budget bytes of host code (zero for no limit).
// onEvict, if not nil, is called for every block leaving the cache, so it can release its code.
func New[B Block](budget int, onEvict func(B)) *Cache[B] {
	return &Cache[B]{
		tree: btree.NewG[entry[B]](8, func(i, j entry[B]) bool {
			return i.start < j.start
		}),
		budget:  budget,
		onEvict: onEvict,
	}
}

// Len returns the number of cached blocks.
func (c *Cache[B]) Len() int {
	return c.tree.Len()
}

// CodeBytes returns the number of host code bytes held.
func (c *Cache[B]) CodeBytes() int {
	return c.codeBytes
}

// Lookup returns the block starting at the guest address.
func (c *Cache[B]) Lookup(address uint32) (b B, ok bool) {
	e, ok := c.tree.Get(entry[B]{start: address})
	if ok {
		b = e.block
	}
	return
}

// Insert adds the block, replacing any block starting at the same address.
// When the block does not fit in the budget the whole cache is cleared first, like the
// emulator does when its code buffer runs full.
func (c *Cache[B]) Insert(b B) {
	start, end := b.Span()
	if old, ok := c.tree.Delete(entry[B]{start: start}); ok {
		c.evict(old)
	}
	if c.budget > 0 && c.codeBytes+b.CodeSize() > c.budget {
		c.Clear()
	}
	c.tree.ReplaceOrInsert(entry[B]{start: start, end: end, block: b})
	c.codeBytes += b.CodeSize()
	if span := end - start; span > c.maxSpan {
		c.maxSpan = span
	}
}

// Invalidate removes every block overlapping the guest range [address, address+size) and returns
// how many were removed.
func (c *Cache[B]) Invalidate(address, size uint32) int {
	if size == 0 {
		return 0
	}
	// Blocks starting before address-maxSpan end before address.
	from := uint32(0)
	if address > c.maxSpan {
		from = address - c.maxSpan
	}
	to := uint64(address) + uint64(size)

	var overlapping []entry[B]
	c.tree.AscendGreaterOrEqual(entry[B]{start: from}, func(e entry[B]) bool {
		if uint64(e.start) >= to {
			return false
		}
		if e.end > address {
			overlapping = append(overlapping, e)
		}
		return true
	})
	for _, e := range overlapping {
		c.tree.Delete(e)
		c.evict(e)
	}
	return len(overlapping)
}

// Clear removes every block.
func (c *Cache[B]) Clear() {
	c.tree.Ascend(func(e entry[B]) bool {
		if c.onEvict != nil {
			c.onEvict(e.block)
		}
		return true
	})
	c.tree.Clear(false)
	c.codeBytes = 0
	c.maxSpan = 0
}

func (c *Cache[B]) evict(e entry[B]) {
	c.codeBytes -= e.block.CodeSize()
	if c.onEvict != nil {
		c.onEvict(e.block)
	}
}
