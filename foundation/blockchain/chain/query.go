package chain

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
)

// Proof is everything needed to verify a transaction is committed to by a
// block without access to the block's other transactions.
type Proof struct {
	BlockIndex  int
	TxIndex     int
	Leaf        []byte
	Siblings    [][]byte
	Root        [32]byte
	TotalLeaves int
}

// Verify recomputes the merkle root from the leaf and its siblings.
func (p Proof) Verify() bool {
	return merkle.VerifyProof(p.Root[:], p.Leaf, p.TxIndex, p.Siblings, p.TotalLeaves)
}

// =============================================================================

// InclusionProof locates the transaction and builds its proof against the
// merkle root recorded in the block header.
func (c *Chain) InclusionProof(tx database.Tx) (Proof, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blkIdx, txIdx, err := c.findTransaction(tx)
	if err != nil {
		return Proof{}, err
	}

	block := c.blocks[blkIdx]

	siblings, err := block.Trans.ProofAt(txIdx)
	if err != nil {
		return Proof{}, fmt.Errorf("proof: %w", err)
	}

	leaf, err := block.Trans.Values()[txIdx].Hash()
	if err != nil {
		return Proof{}, fmt.Errorf("leaf: %w", err)
	}

	proof := Proof{
		BlockIndex:  blkIdx,
		TxIndex:     txIdx,
		Leaf:        leaf,
		Siblings:    siblings,
		Root:        block.Header.TransRoot,
		TotalLeaves: block.Trans.Count(),
	}

	return proof, nil
}

// Blocks returns a copy of the blocks in the chain. Changes made to the
// returned headers are not seen by the chain.
func (c *Chain) Blocks() []database.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blocks := make([]database.Block, len(c.blocks))
	for i, b := range c.blocks {
		blocks[i] = b.Copy()
	}

	return blocks
}

// Length returns the number of blocks in the chain, including genesis.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// Difficulty returns the number of leading zero hex digits a block hash
// needs to be accepted.
func (c *Chain) Difficulty() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.difficulty
}

// Genesis returns the genesis configuration the chain was created from.
func (c *Chain) Genesis() genesis.Genesis {
	return c.genesis
}

// BlockByIndex returns the block at the specified position.
func (c *Chain) BlockByIndex(index uint64) (database.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index >= uint64(len(c.blocks)) {
		return database.Block{}, fmt.Errorf("%w: index %d, length %d", ErrBlockNotFound, index, len(c.blocks))
	}

	return c.blocks[index].Copy(), nil
}

// LatestBlock returns the tail block of the chain.
func (c *Chain) LatestBlock() database.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1].Copy()
}

// Snapshot returns the tail block and the difficulty together so a miner can
// build its candidate from a consistent view.
func (c *Chain) Snapshot() (database.Block, uint) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1].Copy(), c.difficulty
}
