package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/sardis-payments/sardis/internal/testutil"
)

func sevenEntryLeaves() [][]byte {
	leaves := make([][]byte, 0, 7)
	base := testutil.NewLedgerEntryFixture()
	for i := 0; i < 7; i++ {
		e := base.WithSubject(base.Subject).WithAmountMinor(base.AmountMinor + int64(i))
		leaves = append(leaves, []byte(e.Type+e.Subject+hex.EncodeToString([]byte{byte(i)})))
	}
	return leaves
}

func TestBuildMerkleTree_OddEntryDuplication(t *testing.T) {
	entries := sevenEntryLeaves()

	tree, err := BuildMerkleTree(entries)
	testutil.AssertNoError(t, err, "building tree from 7 entries")
	testutil.AssertEqual(t, 7, tree.GetLeafCount(), "leaf count")

	root := tree.GetRoot()
	if root == "" {
		t.Fatal("expected non-empty root hash")
	}

	// Level widths for 7 leaves: 7 -> 4 (dup) -> 2 -> 1. Every leaf, including
	// the duplicated trailing one at each odd level, must produce a proof
	// that recomputes to the same published root.
	for i := 0; i < 7; i++ {
		proof, err := tree.GetProof(i)
		testutil.AssertNoError(t, err, "proof for leaf", i)

		leafHash := hashLeaf(entries[i])
		ok := VerifyMerkleProof(leafHash, proof, root)
		testutil.AssertTrue(t, ok, "proof for leaf", i, "should verify against root")
	}
}

func TestVerifyMerkleProof_BitFlipFails(t *testing.T) {
	entries := sevenEntryLeaves()

	tree, err := BuildMerkleTree(entries)
	testutil.AssertNoError(t, err, "building tree")
	root := tree.GetRoot()

	proof, err := tree.GetProof(3)
	testutil.AssertNoError(t, err, "proof for leaf 3")

	leafHash := hashLeaf(entries[3])
	testutil.AssertTrue(t, VerifyMerkleProof(leafHash, proof, root), "unmodified proof should verify")

	flipped := flipLastHexNibble(leafHash)
	testutil.AssertFalse(t, VerifyMerkleProof(flipped, proof, root), "bit-flipped leaf hash must not verify")

	tamperedProof := make([]ProofStep, len(proof))
	copy(tamperedProof, proof)
	tamperedProof[0].Hash = flipLastHexNibble(tamperedProof[0].Hash)
	testutil.AssertFalse(t, VerifyMerkleProof(leafHash, tamperedProof, root), "bit-flipped sibling hash must not verify")
}

func TestBuildMerkleTree_EmptyEntries(t *testing.T) {
	_, err := BuildMerkleTree(nil)
	testutil.AssertError(t, err, "expected error building tree from no entries")
}

func TestHashPair_Commutative(t *testing.T) {
	a := hashLeaf([]byte("left"))
	b := hashLeaf([]byte("right"))
	testutil.AssertEqual(t, hashPair(a, b), hashPair(b, a), "hashPair must be order-independent")
}

func flipLastHexNibble(h string) string {
	raw, err := hex.DecodeString(h)
	if err != nil {
		sum := sha256.Sum256([]byte(h))
		raw = sum[:]
	}
	raw[len(raw)-1] ^= 0x01
	return hex.EncodeToString(raw)
}
