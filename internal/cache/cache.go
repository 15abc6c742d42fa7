// Package cache holds the mutable lookup tables owned by a single bundling
// run: the content-hash index used for duplicate detection and the
// per-path decision memo used by the exclusion engine.
//
// Neither type is safe for concurrent use. A run creates its own instances
// and drops them when it finishes; nothing here outlives the run.
package cache

import "sort"

// HashIndex maps a content digest to the first path that produced it.
type HashIndex struct {
	first map[string]string
}

// NewHashIndex returns an empty index.
func NewHashIndex() *HashIndex {
	return &HashIndex{first: make(map[string]string)}
}

// Lookup returns the first-seen path for sum.
func (x *HashIndex) Lookup(sum string) (string, bool) {
	p, ok := x.first[sum]
	return p, ok
}

// Register records path as the owner of sum unless sum is already known.
// It returns the owning path and whether this call registered it.
func (x *HashIndex) Register(sum, path string) (owner string, added bool) {
	if p, ok := x.first[sum]; ok {
		return p, false
	}
	x.first[sum] = path
	return path, true
}

// Forget removes sum so a later file with the same content is treated as
// first-seen again.
func (x *HashIndex) Forget(sum string) {
	delete(x.first, sum)
}

// Len reports the number of distinct digests.
func (x *HashIndex) Len() int { return len(x.first) }

// Memo is a write-once map: the first value stored by Put wins.
type Memo[V any] struct {
	m map[string]V
}

// NewMemo returns an empty memo.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{m: make(map[string]V)}
}

// Get returns the memoized value for key.
func (c *Memo[V]) Get(key string) (V, bool) {
	v, ok := c.m[key]
	return v, ok
}

// Put stores v under key unless a value is already present, and returns the
// value now held for key.
func (c *Memo[V]) Put(key string, v V) V {
	if old, ok := c.m[key]; ok {
		return old
	}
	c.m[key] = v
	return v
}

// Set replaces the value for key. It is reserved for explicit state
// transitions, such as an included path later skipped by a limit.
func (c *Memo[V]) Set(key string, v V) { c.m[key] = v }

// Len reports the number of memoized keys.
func (c *Memo[V]) Len() int { return len(c.m) }

// Keys returns the memoized keys in sorted order.
func (c *Memo[V]) Keys() []string {
	out := make([]string, 0, len(c.m))
	for k := range c.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
