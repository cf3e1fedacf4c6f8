// Package core holds the commitment primitives shared by the prover and
// the verifier.
package core

import (
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// Leaf and node hashes are domain separated so that an interior node can
// never be presented as a leaf.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// MerkleTree represents a Merkle tree for committing to data
type MerkleTree struct {
	root   []byte
	leaves [][]byte
}

// NewMerkleTree creates a new Merkle tree from the given data
func NewMerkleTree(data [][]byte) (*MerkleTree, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot create Merkle tree with empty data")
	}

	leaves := make([][]byte, len(data))
	for i, item := range data {
		leaves[i] = hashLeaf(item)
	}

	currentLevel := leaves

	for len(currentLevel) > 1 {
		nextLevel := make([][]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd number of nodes, hash the last node with itself
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i]))
			}
		}

		currentLevel = nextLevel
	}

	return &MerkleTree{
		root:   currentLevel[0],
		leaves: leaves,
	}, nil
}

// Root returns the Merkle root
func (mt *MerkleTree) Root() []byte {
	return append([]byte(nil), mt.root...)
}

// Len returns the number of leaves
func (mt *MerkleTree) Len() int {
	return len(mt.leaves)
}

func hashLeaf(data []byte) []byte {
	h := sha2.SumConcat([]byte{leafPrefix}, data)
	return h[:]
}

func hashNode(left, right []byte) []byte {
	h := sha2.SumConcat([]byte{nodePrefix}, left, right)
	return h[:]
}

// MerkleRoot computes the Merkle root of the given data (convenience function)
func MerkleRoot(data [][]byte) ([]byte, error) {
	tree, err := NewMerkleTree(data)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}
