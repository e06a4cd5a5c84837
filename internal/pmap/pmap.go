// Package pmap implements a persistent, structurally-shared ordered map.
//
// Every mutation (Insert, Remove) returns a new Map whose root may share
// unchanged subtrees with the receiver's root. Two maps compare as the
// "same identity" in O(1) by comparing root node pointers rather than
// walking the tree — this is what lets Snapshot.SameContentIdentity and
// SameTotalIdentity stay cheap regardless of document size.
package pmap

import "cmp"

// node is an AVL node. Nodes are immutable once constructed; every
// operation that would change a node's contents allocates a new one.
type node[K cmp.Ordered, V any] struct {
	key         K
	val         V
	left, right *node[K, V]
	height      int
}

func height[K cmp.Ordered, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func newNode[K cmp.Ordered, V any](key K, val V, left, right *node[K, V]) *node[K, V] {
	h := height(left)
	if rh := height(right); rh > h {
		h = rh
	}
	return &node[K, V]{key: key, val: val, left: left, right: right, height: h + 1}
}

func balanceFactor[K cmp.Ordered, V any](n *node[K, V]) int {
	return height(n.left) - height(n.right)
}

func rotateRight[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	l := n.left
	return newNode(l.key, l.val, l.left, newNode(n.key, n.val, l.right, n.right))
}

func rotateLeft[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	r := n.right
	return newNode(r.key, r.val, newNode(n.key, n.val, n.left, r.left), r.right)
}

func rebalance[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	bf := balanceFactor(n)
	switch {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n = newNode(n.key, n.val, rotateLeft(n.left), n.right)
		}
		return rotateRight(n)
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n = newNode(n.key, n.val, n.left, rotateRight(n.right))
		}
		return rotateLeft(n)
	default:
		return n
	}
}

func insert[K cmp.Ordered, V any](n *node[K, V], key K, val V) *node[K, V] {
	if n == nil {
		return newNode(key, val, nil, nil)
	}
	switch {
	case key < n.key:
		return rebalance(newNode(n.key, n.val, insert(n.left, key, val), n.right))
	case key > n.key:
		return rebalance(newNode(n.key, n.val, n.left, insert(n.right, key, val)))
	default:
		return newNode(key, val, n.left, n.right)
	}
}

func minNode[K cmp.Ordered, V any](n *node[K, V]) *node[K, V] {
	for n.left != nil {
		n = n.left
	}
	return n
}

func remove[K cmp.Ordered, V any](n *node[K, V], key K) *node[K, V] {
	if n == nil {
		return nil
	}
	switch {
	case key < n.key:
		nl := remove(n.left, key)
		if nl == n.left {
			return n
		}
		return rebalance(newNode(n.key, n.val, nl, n.right))
	case key > n.key:
		nr := remove(n.right, key)
		if nr == n.right {
			return n
		}
		return rebalance(newNode(n.key, n.val, n.left, nr))
	default:
		switch {
		case n.left == nil:
			return n.right
		case n.right == nil:
			return n.left
		default:
			succ := minNode(n.right)
			return rebalance(newNode(succ.key, succ.val, n.left, remove(n.right, succ.key)))
		}
	}
}

func lookup[K cmp.Ordered, V any](n *node[K, V], key K) (V, bool) {
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n.val, true
		}
	}
	var zero V
	return zero, false
}

func forEach[K cmp.Ordered, V any](n *node[K, V], f func(K, V)) {
	if n == nil {
		return
	}
	forEach(n.left, f)
	f(n.key, n.val)
	forEach(n.right, f)
}

func count[K cmp.Ordered, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return 1 + count(n.left) + count(n.right)
}

// Map is an immutable, structurally-shared ordered map from K to V.
// The zero value is an empty map, ready to use.
type Map[K cmp.Ordered, V any] struct {
	root *node[K, V]
}

// Lookup returns the value bound to key and whether it was present.
// Never mutates.
func (m Map[K, V]) Lookup(key K) (V, bool) {
	return lookup(m.root, key)
}

// Has reports whether key is bound in m.
func (m Map[K, V]) Has(key K) bool {
	_, ok := lookup(m.root, key)
	return ok
}

// Insert returns a new Map with key bound to val, replacing any prior
// binding. Subtrees untouched by the change are shared with m.
func (m Map[K, V]) Insert(key K, val V) Map[K, V] {
	return Map[K, V]{root: insert(m.root, key, val)}
}

// Remove returns a new Map with key absent. If key is not present, the
// returned Map shares the same root identity as m (a true no-op).
func (m Map[K, V]) Remove(key K) Map[K, V] {
	nr := remove(m.root, key)
	if nr == m.root {
		return m
	}
	return Map[K, V]{root: nr}
}

// ForEach invokes f for every binding in ascending key order.
func (m Map[K, V]) ForEach(f func(K, V)) {
	forEach(m.root, f)
}

// Len returns the number of bindings. O(n); intended for diagnostics/tests,
// not hot paths.
func (m Map[K, V]) Len() int {
	return count(m.root)
}

// SameIdentity reports whether a and b were built from a common lineage
// with no intervening mutation — i.e. they share the same root node
// instance. This is the O(1) "did anything change" check the rest of the
// system relies on; it is not deep structural equality, and two maps with
// equal contents built independently do not compare equal by this check.
func (m Map[K, V]) SameIdentity(other Map[K, V]) bool {
	return m.root == other.root
}
