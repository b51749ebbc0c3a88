package buffer

import (
	"math/bits"
	"strings"
)

// maxLeaf bounds the size of a leaf chunk. Edits copy at most one leaf on
// each side of the edit point.
const maxLeaf = 1024

// node is an immutable rope node. A leaf has no children and holds text.
type node struct {
	left, right *node
	text        string
	length      int // bytes
	newlines    int
	depth       int
	leaves      int
}

func newLeaf(s string) *node {
	if s == "" {
		return nil
	}
	return &node{
		text:     s,
		length:   len(s),
		newlines: strings.Count(s, "\n"),
		leaves:   1,
	}
}

func (n *node) isLeaf() bool {
	return n.left == nil && n.right == nil
}

func build(s string) *node {
	if len(s) <= maxLeaf {
		return newLeaf(s)
	}
	mid := len(s) / 2
	return join(build(s[:mid]), build(s[mid:]))
}

// join links two subtrees without merging or rebalancing.
func join(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &node{
		left:     a,
		right:    b,
		length:   a.length + b.length,
		newlines: a.newlines + b.newlines,
		depth:    max(a.depth, b.depth) + 1,
		leaves:   a.leaves + b.leaves,
	}
}

// concat joins two subtrees, merging small adjacent leaves.
func concat(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.isLeaf() && b.isLeaf() && a.length+b.length <= maxLeaf {
		return newLeaf(a.text + b.text)
	}
	if !a.isLeaf() && a.right.isLeaf() && b.isLeaf() && a.right.length+b.length <= maxLeaf {
		return join(a.left, newLeaf(a.right.text+b.text))
	}
	if a.isLeaf() && !b.isLeaf() && b.left.isLeaf() && a.length+b.left.length <= maxLeaf {
		return join(newLeaf(a.text+b.left.text), b.right)
	}
	return join(a, b)
}

// split returns the subtrees holding bytes [0, at) and [at, length).
func split(n *node, at int) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	if at <= 0 {
		return nil, n
	}
	if at >= n.length {
		return n, nil
	}
	if n.isLeaf() {
		return newLeaf(n.text[:at]), newLeaf(n.text[at:])
	}
	if at <= n.left.length {
		l, r := split(n.left, at)
		return l, concat(r, n.right)
	}
	l, r := split(n.right, at-n.left.length)
	return concat(n.left, l), r
}

// balanced reports whether the depth is within a constant factor of the
// optimal depth for the number of leaves.
func (n *node) balanced() bool {
	if n == nil {
		return true
	}
	return n.depth <= 2*bits.Len(uint(n.leaves))+4
}

// rebalance rebuilds a perfectly balanced tree over the existing leaves.
func rebalance(n *node) *node {
	if n.balanced() {
		return n
	}
	leaves := make([]*node, 0, n.leaves)
	collect(n, &leaves)
	return buildFromLeaves(leaves)
}

func collect(n *node, out *[]*node) {
	if n == nil {
		return
	}
	if n.isLeaf() {
		*out = append(*out, n)
		return
	}
	collect(n.left, out)
	collect(n.right, out)
}

func buildFromLeaves(leaves []*node) *node {
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return leaves[0]
	}
	mid := len(leaves) / 2
	return join(buildFromLeaves(leaves[:mid]), buildFromLeaves(leaves[mid:]))
}

// offsetAfterNewline returns the byte offset just past the k-th newline
// (1-based) in the subtree. k must be in [1, n.newlines].
func offsetAfterNewline(n *node, k int) int {
	offset := 0
	for !n.isLeaf() {
		if k <= n.left.newlines {
			n = n.left
			continue
		}
		k -= n.left.newlines
		offset += n.left.length
		n = n.right
	}
	i := 0
	for ; k > 0; k-- {
		i += strings.IndexByte(n.text[i:], '\n') + 1
	}
	return offset + i
}

// newlinesBefore counts newlines in bytes [0, at).
func newlinesBefore(n *node, at int) int {
	count := 0
	for n != nil && at > 0 {
		if n.isLeaf() {
			return count + strings.Count(n.text[:min(at, n.length)], "\n")
		}
		if at <= n.left.length {
			n = n.left
			continue
		}
		count += n.left.newlines
		at -= n.left.length
		n = n.right
	}
	return count
}

func (n *node) writeRange(sb *strings.Builder, start, end int) {
	if n == nil || start >= end {
		return
	}
	if n.isLeaf() {
		sb.WriteString(n.text[start:end])
		return
	}
	if start < n.left.length {
		n.left.writeRange(sb, start, min(end, n.left.length))
	}
	if end > n.left.length {
		n.right.writeRange(sb, max(start-n.left.length, 0), end-n.left.length)
	}
}
