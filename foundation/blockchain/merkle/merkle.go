// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree for committing
// to the transactions of a block and proving their inclusion.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of error variables for tree construction and proofs.
var (
	ErrEmptyTree       = errors.New("cannot construct tree with no content")
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	ErrNotFound        = errors.New("unable to find data in tree")
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	count        int
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		return ErrEmptyTree
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	// An odd number of leafs gets the last leaf duplicated.
	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		})
	}

	root, err := buildIntermediate(leafs, t)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash
	t.count = len(values)

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Count returns the number of values committed to by the tree, not counting
// the duplicated leaf.
func (t *Tree[T]) Count() int {
	return t.count
}

// ProofAt returns the sibling hashes on the path from the leaf at the
// specified index up to the root. The first hash pairs with the leaf.
//
// The position of each sibling is implied by the index. At every level, an
// even index means the running hash is on the left and the sibling is
// concatenated second. An odd index means the sibling comes first. The
// index is halved after each level. VerifyProof performs this walk.
func (t *Tree[T]) ProofAt(index int) ([][]byte, error) {
	if index < 0 || index >= t.count {
		return nil, fmt.Errorf("%w: index %d, leafs %d", ErrIndexOutOfRange, index, t.count)
	}

	var proof [][]byte

	node := t.Leafs[index]
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		switch parent.Left {
		case node:
			proof = append(proof, parent.Right.Hash)
		default:
			proof = append(proof, parent.Left.Hash)
		}
		node = parent
	}

	return proof, nil
}

// Proof locates the specified data in the tree and returns the proof for it
// along with its leaf index.
func (t *Tree[T]) Proof(data T) ([][]byte, int, error) {
	for i := 0; i < t.count; i++ {
		if !t.Leafs[i].Value.Equals(data) {
			continue
		}

		proof, err := t.ProofAt(i)
		if err != nil {
			return nil, 0, err
		}

		return proof, i, nil
	}

	return nil, 0, ErrNotFound
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree doesn't match the root hash.
func (t *Tree[T]) Verify() error {
	calculatedMerkleRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculatedMerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if
// the proof for that data hashes up to the merkle root.
func (t *Tree[T]) VerifyData(data T) error {
	proof, index, err := t.Proof(data)
	if err != nil {
		return err
	}

	leaf, err := data.Hash()
	if err != nil {
		return err
	}

	if !VerifyProofWith(t.hashStrategy, t.MerkleRoot, leaf, index, proof, t.count) {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// Values returns a slice of unique values stored in the tree.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// Root32 returns the merkle root as a fixed size array.
func (t *Tree[T]) Root32() [32]byte {
	var root [32]byte
	copy(root[:], t.MerkleRoot)
	return root
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b bytes.Buffer

	for _, l := range t.Leafs {
		b.WriteString(l.String())
		b.WriteString("\n")
	}

	return b.String()
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. Use the Values function to
// return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	return combine(n.Tree.hashStrategy, leftBytes, rightBytes)
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %x %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// VerifyProof recomputes the root from the leaf hash and its sibling path
// using sha256 and compares it to the specified root.
func VerifyProof(root []byte, leaf []byte, index int, proof [][]byte, totalLeaves int) bool {
	return VerifyProofWith(sha256.New, root, leaf, index, proof, totalLeaves)
}

// VerifyProofWith recomputes the root from the leaf hash and its sibling path
// using the specified hash strategy and compares it to the specified root.
func VerifyProofWith(hashStrategy func() hash.Hash, root []byte, leaf []byte, index int, proof [][]byte, totalLeaves int) bool {
	if totalLeaves <= 0 || index < 0 || index >= totalLeaves {
		return false
	}

	if len(proof) != depth(totalLeaves) {
		return false
	}

	current := leaf
	for _, sibling := range proof {
		var err error
		switch index % 2 {
		case 0:
			current, err = combine(hashStrategy, current, sibling)
		default:
			current, err = combine(hashStrategy, sibling, current)
		}
		if err != nil {
			return false
		}
		index /= 2
	}

	return bytes.Equal(current, root)
}

// depth returns the number of levels above the leafs for a tree holding the
// specified number of values. A single value still gets paired with itself.
func depth(leafs int) int {
	var d int
	for {
		leafs = (leafs + 1) / 2
		d++
		if leafs == 1 {
			return d
		}
	}
}

// combine hashes the concatenation of the left and right hashes.
func combine(hashStrategy func() hash.Hash, left []byte, right []byte) ([]byte, error) {
	h := hashStrategy()
	if _, err := h.Write(left); err != nil {
		return nil, err
	}
	if _, err := h.Write(right); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// buildIntermediate is a helper function that for a given list of leaf nodes,
// constructs the intermediate and root levels of the tree. Returns the resulting
// root node of the tree.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) (*Node[T], error) {
	for {
		nodes := make([]*Node[T], 0, (len(nl)+1)/2)

		for i := 0; i < len(nl); i += 2 {
			left, right := i, i+1
			if right == len(nl) {
				right = i
			}

			hash, err := combine(t.hashStrategy, nl[left].Hash, nl[right].Hash)
			if err != nil {
				return nil, err
			}

			n := Node[T]{
				Left:  nl[left],
				Right: nl[right],
				Hash:  hash,
				Tree:  t,
			}

			nodes = append(nodes, &n)
			nl[left].Parent = &n
			nl[right].Parent = &n
		}

		if len(nodes) == 1 {
			return nodes[0], nil
		}

		nl = nodes
	}
}
