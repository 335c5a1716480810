// Package database handles the data model for the blockchain: the
// transactions, the blocks that batch them, and the rules for linking one
// block to the next.
package database

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// GenesisPrevHash is the previous block hash recorded by the genesis block.
const GenesisPrevHash = "0"

// maxNumberBits caps the block number to an unsigned 128 bit value.
const maxNumberBits = 128

// Set of error variables for block validation.
var (
	ErrBlockInvalid = errors.New("block invalid")
	ErrStaleBlock   = fmt.Errorf("%w: not the next block", ErrBlockInvalid)
)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        *uint256.Int // Block number in the chain, genesis is 0.
	TimeStamp     uint64       // Time the block was mined in unix seconds.
	TransRoot     [32]byte     // Merkle root of the transactions in this block.
	PrevBlockHash string       // Hash of the previous block in the chain.
	Nonce         uint64       // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
}

// NewBlock constructs the candidate block that follows the previous block.
// The nonce starts at zero and is the value a miner searches on.
func NewBlock(prevBlock Block, tree *merkle.Tree[Tx], timeStamp uint64) Block {
	return Block{
		Header: BlockHeader{
			Number:        new(uint256.Int).AddUint64(prevBlock.Header.Number, 1),
			TimeStamp:     timeStamp,
			TransRoot:     tree.Root32(),
			PrevBlockHash: prevBlock.Hash(),
		},
		Trans: tree,
	}
}

// GenesisBlock constructs the first block of the chain. It holds the single
// coinbase transaction from the genesis configuration.
func GenesisBlock(gen genesis.Genesis) (Block, error) {
	coinbase := Tx{
		From:  gen.Coinbase.From,
		To:    gen.Coinbase.To,
		Value: gen.Coinbase.Value,
		Nonce: gen.Coinbase.Nonce,
		Sig:   []byte(gen.Coinbase.Sig),
	}

	tree, err := merkle.NewTree([]Tx{coinbase})
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: BlockHeader{
			Number:        uint256.NewInt(0),
			TimeStamp:     uint64(gen.Date.UTC().Unix()),
			TransRoot:     tree.Root32(),
			PrevBlockHash: GenesisPrevHash,
		},
		Trans: tree,
	}

	return block, nil
}

// IsGenesis reports whether this is the first block of a chain.
func (b Block) IsGenesis() bool {
	return b.Header.Number != nil && b.Header.Number.IsZero()
}

// Copy returns a block that shares no header state with b. The transaction
// tree is shared since it is never modified after construction.
func (b Block) Copy() Block {
	if b.Header.Number != nil {
		b.Header.Number = new(uint256.Int).Set(b.Header.Number)
	}
	return b
}

// Hash returns the unique hash for the Block. The hash covers the number,
// timestamp, merkle root, previous hash, and nonce. It is recomputed on every
// call and is never stored.
func (b Block) Hash() string {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.Header.Nonce)

	h := sha256.New()
	h.Write([]byte(b.Header.Number.Dec()))
	h.Write([]byte(strconv.FormatUint(b.Header.TimeStamp, 10)))
	h.Write(b.Header.TransRoot[:])
	h.Write([]byte(b.Header.PrevBlockHash))
	h.Write(nonce[:])

	return hex.EncodeToString(h.Sum(nil))
}

// ValidateBlock takes a block and validates it to be the next block after the
// specified previous block. Errors for a block that doesn't follow the
// previous block wrap ErrStaleBlock. All errors wrap ErrBlockInvalid.
func (b Block) ValidateBlock(previousBlock Block, difficulty uint, evHandler func(v string, args ...any)) error {
	if b.Header.Number == nil || previousBlock.Header.Number == nil {
		return fmt.Errorf("%w: block number missing", ErrBlockInvalid)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block number is the next number", b.Header.Number.Dec())

	nextNumber := new(uint256.Int).AddUint64(previousBlock.Header.Number, 1)
	if !b.Header.Number.Eq(nextNumber) {
		return fmt.Errorf("%w: got %s, exp %s", ErrStaleBlock, b.Header.Number.Dec(), nextNumber.Dec())
	}

	if b.Header.Number.BitLen() > maxNumberBits {
		return fmt.Errorf("%w: block number %s overflows %d bits", ErrBlockInvalid, b.Header.Number.Dec(), maxNumberBits)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: parent hash does match parent block", b.Header.Number.Dec())

	if prevHash := previousBlock.Hash(); b.Header.PrevBlockHash != prevHash {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrStaleBlock, b.Header.PrevBlockHash, prevHash)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block hash has been solved", b.Header.Number.Dec())

	if hash := b.Hash(); !IsHashSolved(difficulty, hash) {
		return fmt.Errorf("%w: %s does not solve difficulty %d", ErrBlockInvalid, hash, difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block's timestamp is not before parent block's timestamp", b.Header.Number.Dec())

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		return fmt.Errorf("%w: block timestamp is before parent block, parent %d, block %d", ErrBlockInvalid, previousBlock.Header.TimeStamp, b.Header.TimeStamp)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: merkle root does match transactions", b.Header.Number.Dec())

	if err := b.ValidateTransRoot(); err != nil {
		return err
	}

	return nil
}

// ValidateTransRoot checks the header's merkle root matches the block's
// transactions.
func (b Block) ValidateTransRoot() error {
	if b.Trans == nil {
		return fmt.Errorf("%w: block has no transactions", ErrBlockInvalid)
	}

	if root := b.Trans.Root32(); root != b.Header.TransRoot {
		return fmt.Errorf("%w: merkle root does not match transactions, got %s, exp %s", ErrBlockInvalid, hexutil.Encode(root[:]), hexutil.Encode(b.Header.TransRoot[:]))
	}

	return nil
}

// =============================================================================

// ValidateBlockPair checks the newer block correctly follows the older block.
// The older block must solve the difficulty target unless it is the genesis
// block. The newer block's own hash is not checked here. A genesis older
// block only skips the difficulty check, the index and hash linkage are still
// enforced, which is stricter than exempting the pair outright.
func ValidateBlockPair(newer Block, older Block, difficulty uint) error {
	if newer.Header.Number == nil || older.Header.Number == nil {
		return fmt.Errorf("%w: block number missing", ErrBlockInvalid)
	}

	nextNumber := new(uint256.Int).AddUint64(older.Header.Number, 1)
	if !newer.Header.Number.Eq(nextNumber) {
		return fmt.Errorf("%w: block %s does not follow block %s", ErrBlockInvalid, newer.Header.Number.Dec(), older.Header.Number.Dec())
	}

	olderHash := older.Hash()

	if !older.IsGenesis() && !IsHashSolved(difficulty, olderHash) {
		return fmt.Errorf("%w: block %s hash %s does not solve difficulty %d", ErrBlockInvalid, older.Header.Number.Dec(), olderHash, difficulty)
	}

	if newer.Header.PrevBlockHash != olderHash {
		return fmt.Errorf("%w: block %s previous hash %s, exp %s", ErrBlockInvalid, newer.Header.Number.Dec(), newer.Header.PrevBlockHash, olderHash)
	}

	return nil
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// The hash needs to start with a difficulty number of 0's.
func IsHashSolved(difficulty uint, hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}

	if difficulty > uint(len(hash)) {
		return false
	}

	return strings.HasPrefix(hash, strings.Repeat("0", int(difficulty)))
}

// =============================================================================

// BlockData represents what can be serialized for a block. The hash is
// included for display and is recomputed when converting back to a Block.
type BlockData struct {
	Hash          string `json:"hash"`
	Number        string `json:"number"`
	TimeStamp     uint64 `json:"timestamp"`
	TransRoot     string `json:"trans_root"`
	PrevBlockHash string `json:"prev_block_hash"`
	Nonce         uint64 `json:"nonce"`
	Trans         []Tx   `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:          block.Hash(),
		Number:        block.Header.Number.Dec(),
		TimeStamp:     block.Header.TimeStamp,
		TransRoot:     hexutil.Encode(block.Header.TransRoot[:]),
		PrevBlockHash: block.Header.PrevBlockHash,
		Nonce:         block.Header.Nonce,
		Trans:         block.Trans.Values(),
	}
}

// ToBlock converts a BlockData into a Block.
func ToBlock(blockData BlockData) (Block, error) {
	number, err := uint256.FromDecimal(blockData.Number)
	if err != nil {
		return Block{}, fmt.Errorf("parse number: %w", err)
	}

	root, err := hexutil.Decode(blockData.TransRoot)
	if err != nil {
		return Block{}, fmt.Errorf("parse trans root: %w", err)
	}

	if len(root) != 32 {
		return Block{}, fmt.Errorf("trans root is %d bytes, exp 32", len(root))
	}

	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: BlockHeader{
			Number:        number,
			TimeStamp:     blockData.TimeStamp,
			PrevBlockHash: blockData.PrevBlockHash,
			Nonce:         blockData.Nonce,
		},
		Trans: tree,
	}
	copy(block.Header.TransRoot[:], root)

	return block, nil
}
