// Package chain is the core API for the blockchain. It owns the ordered set
// of blocks and implements the rules for extending and validating them.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Set of error variables for chain operations.
var (
	ErrChainInvalid        = errors.New("chain invalid")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBlockNotFound       = errors.New("block not found")
	ErrProofMismatch       = errors.New("inclusion proof does not match merkle root")
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Chain manages the in-memory blockchain shared by the miners.
type Chain struct {
	mu         sync.RWMutex
	blocks     []database.Block
	difficulty uint
	genesis    genesis.Genesis
	evHandler  EventHandler
}

// New constructs a chain holding only the genesis block.
func New(gen genesis.Genesis, evHandler EventHandler) (*Chain, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	genBlock, err := database.GenesisBlock(gen)
	if err != nil {
		return nil, fmt.Errorf("genesis block: %w", err)
	}

	ev("chain: New: genesis: blk[%s]: hash[%s]: difficulty[%d]", genBlock.Header.Number.Dec(), genBlock.Hash(), gen.Difficulty)

	c := Chain{
		blocks:     []database.Block{genBlock},
		difficulty: uint(gen.Difficulty),
		genesis:    gen,
		evHandler:  ev,
	}

	return &c, nil
}

// AppendBlock validates the block against the current tail of the chain and
// adds it if it's the next block. The chain is left unchanged on failure.
func (c *Chain) AppendBlock(block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		return fmt.Errorf("%w: chain has no genesis block", database.ErrBlockInvalid)
	}

	tail := c.blocks[len(c.blocks)-1]

	if err := block.ValidateBlock(tail, c.difficulty, c.evHandler); err != nil {
		c.evHandler("chain: AppendBlock: blk[%s]: REJECTED: %s", numberString(block), err)
		return err
	}

	c.blocks = append(c.blocks, block.Copy())

	c.evHandler("chain: AppendBlock: blk[%s]: hash[%s]: ACCEPTED: trans[%d]", block.Header.Number.Dec(), block.Hash(), block.Trans.Count())

	return nil
}

// IsChainValid reports whether ValidateChain finds no problems.
func (c *Chain) IsChainValid() bool {
	return c.ValidateChain() == nil
}

// ValidateChain walks the entire chain checking every consecutive pair of
// blocks and the tail block against the difficulty. The genesis block is
// exempt from the difficulty check.
func (c *Chain) ValidateChain() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch len(c.blocks) {
	case 0:
		return fmt.Errorf("%w: no blocks", ErrChainInvalid)

	case 1:
		return validateTail(c.blocks[0], c.difficulty)
	}

	for i := 1; i < len(c.blocks); i++ {
		if err := database.ValidateBlockPair(c.blocks[i], c.blocks[i-1], c.difficulty); err != nil {
			return fmt.Errorf("%w: pair %d: %w", ErrChainInvalid, i, err)
		}
	}

	for i, block := range c.blocks {
		if err := block.ValidateTransRoot(); err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrChainInvalid, i, err)
		}
	}

	return validateTail(c.blocks[len(c.blocks)-1], c.difficulty)
}

// FindTransaction locates the transaction in the chain by its signature and
// returns the position of the block and of the transaction inside the block.
func (c *Chain) FindTransaction(tx database.Tx) (blockIndex int, txIndex int, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.findTransaction(tx)
}

// CheckTransactionValidity locates the transaction and verifies its inclusion
// proof against the merkle root committed in the block header.
func (c *Chain) CheckTransactionValidity(tx database.Tx) (bool, error) {
	proof, err := c.InclusionProof(tx)
	if err != nil {
		return false, err
	}

	if !proof.Verify() {
		return false, fmt.Errorf("%w: block %d, tx %d", ErrProofMismatch, proof.BlockIndex, proof.TxIndex)
	}

	return true, nil
}

// =============================================================================

func (c *Chain) findTransaction(tx database.Tx) (int, int, error) {
	for blkIdx, block := range c.blocks {
		for txIdx, blkTx := range block.Trans.Values() {
			if blkTx.Equals(tx) {
				return blkIdx, txIdx, nil
			}
		}
	}

	return 0, 0, ErrTransactionNotFound
}

// validateTail checks the last block of the chain satisfies the difficulty.
func validateTail(block database.Block, difficulty uint) error {
	if block.IsGenesis() {
		return nil
	}

	if hash := block.Hash(); !database.IsHashSolved(difficulty, hash) {
		return fmt.Errorf("%w: tail block %s hash %s does not solve difficulty %d", ErrChainInvalid, block.Header.Number.Dec(), hash, difficulty)
	}

	return nil
}

// numberString renders the block number for logging, even when it is missing.
func numberString(b database.Block) string {
	if b.Header.Number == nil {
		return "nil"
	}
	return b.Header.Number.Dec()
}
