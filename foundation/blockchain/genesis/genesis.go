// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date" toml:"date"`
	Difficulty    uint16    `json:"difficulty" toml:"difficulty"`           // Number of leading zero hex digits a block hash needs.
	TransPerBlock uint16    `json:"trans_per_block" toml:"trans_per_block"` // The number of transactions the worker mines into a block.
	Coinbase      Coinbase  `json:"coinbase" toml:"coinbase"`               // The single transaction held by the genesis block.
}

// Coinbase represents the synthetic transaction that is placed inside the
// genesis block so its merkle tree is never empty.
type Coinbase struct {
	From  string `json:"from" toml:"from"`
	To    string `json:"to" toml:"to"`
	Value uint64 `json:"value" toml:"value"`
	Nonce uint64 `json:"nonce" toml:"nonce"`
	Sig   string `json:"sig" toml:"sig"`
}

// Default returns the genesis settings used when no genesis file is provided.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Difficulty:    4,
		TransPerBlock: 1,
		Coinbase: Coinbase{
			From:  "me",
			To:    "me",
			Value: 10,
			Nonce: 0,
			Sig:   "coinbase",
		},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Files with a .toml extension are
// decoded as TOML, everything else as JSON. Fields missing from the file keep
// their default values.
func Load(path string) (Genesis, error) {
	genesis := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &genesis); err != nil {
			return Genesis{}, fmt.Errorf("decoding toml genesis: %w", err)
		}

	default:
		content, err := os.ReadFile(path)
		if err != nil {
			return Genesis{}, err
		}

		if err := json.Unmarshal(content, &genesis); err != nil {
			return Genesis{}, fmt.Errorf("decoding json genesis: %w", err)
		}
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis values can be used to construct a chain.
func (g Genesis) Validate() error {
	if g.Difficulty > 64 {
		return fmt.Errorf("difficulty %d is larger than the hash size", g.Difficulty)
	}

	if g.TransPerBlock == 0 {
		return errors.New("trans_per_block must be at least 1")
	}

	if g.Coinbase.From == "" || g.Coinbase.To == "" {
		return errors.New("coinbase transaction requires a from and to")
	}

	return nil
}
