package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ProofStep is one step of a Merkle inclusion proof: the sibling hash and
// which side it sits on relative to the node being proven.
type ProofStep struct {
	Hash      string
	OnTheLeft bool
}

type merkleNode struct {
	hash  string
	left  *merkleNode
	right *merkleNode
}

// MerkleTree builds a commutative-pair-hash Merkle tree over a list of
// leaf hashes, duplicating the trailing node at odd tree levels so every
// level has an even width.
type MerkleTree struct {
	root   *merkleNode
	leaves []*merkleNode
}

func hashLeaf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashPair(left, right string) string {
	combined := left + right
	if right < left {
		combined = right + left
	}
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// BuildMerkleTree constructs a tree from leaf data (pre-hash, e.g. each
// entry's canonical-JSON bytes). Returns an error on an empty entry list.
func BuildMerkleTree(entries [][]byte) (*MerkleTree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("audit: cannot build merkle tree from empty entries")
	}
	leaves := make([]*merkleNode, len(entries))
	for i, e := range entries {
		leaves[i] = &merkleNode{hash: hashLeaf(e)}
	}
	t := &MerkleTree{leaves: leaves}

	level := leaves
	for len(level) > 1 {
		next := make([]*merkleNode, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, &merkleNode{hash: hashPair(left.hash, right.hash), left: left, right: right})
		}
		level = next
	}
	t.root = level[0]
	return t, nil
}

// GetRoot returns the tree's root hash.
func (t *MerkleTree) GetRoot() string {
	return t.root.hash
}

// GetLeafCount returns the number of leaves the tree was built from.
func (t *MerkleTree) GetLeafCount() int {
	return len(t.leaves)
}

// GetProof returns the inclusion proof for the leaf at index, as an
// ordered list of sibling hashes to combine from leaf to root.
func (t *MerkleTree) GetProof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("audit: index %d out of range [0, %d)", index, len(t.leaves))
	}
	var proof []ProofStep
	level := t.leaves
	idx := index
	for len(level) > 1 {
		pairStart := idx - idx%2
		left := level[pairStart]
		right := left
		if pairStart+1 < len(level) {
			right = level[pairStart+1]
		}
		if idx == pairStart {
			proof = append(proof, ProofStep{Hash: right.hash, OnTheLeft: false})
		} else {
			proof = append(proof, ProofStep{Hash: left.hash, OnTheLeft: true})
		}

		next := make([]*merkleNode, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			l := level[i]
			r := l
			if i+1 < len(level) {
				r = level[i+1]
			}
			next = append(next, &merkleNode{hash: hashPair(l.hash, r.hash), left: l, right: r})
		}
		level = next
		idx /= 2
	}
	return proof, nil
}

// VerifyMerkleProof recomputes the root from a leaf hash and its proof,
// and checks it against the expected root. Stateless: usable offline with
// only the leaf hash, proof, and published root.
func VerifyMerkleProof(leafHash string, proof []ProofStep, root string) bool {
	current := leafHash
	for _, step := range proof {
		if step.OnTheLeft {
			current = hashPair(step.Hash, current)
		} else {
			current = hashPair(current, step.Hash)
		}
	}
	return current == root
}
