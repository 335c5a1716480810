package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type tx struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Value    uint64 `json:"value"`
	Nonce    uint64 `json:"nonce"`
	Sig      string `json:"sig"`
}

type block struct {
	Hash          string `json:"hash"`
	Number        string `json:"number"`
	TimeStamp     uint64 `json:"timestamp"`
	TransRoot     string `json:"trans_root"`
	PrevBlockHash string `json:"prev_block_hash"`
	Nonce         uint64 `json:"nonce"`
	Trans         []tx   `json:"trans"`
}

type chainInfo struct {
	Length      int    `json:"length"`
	Difficulty  uint   `json:"difficulty"`
	Valid       bool   `json:"valid"`
	LatestHash  string `json:"latest_hash"`
	Uncommitted int    `json:"uncommitted"`
}

type proof struct {
	BlockIndex  int      `json:"block_index"`
	TxIndex     int      `json:"tx_index"`
	Leaf        string   `json:"leaf"`
	Siblings    []string `json:"siblings"`
	Root        string   `json:"root"`
	TotalLeaves int      `json:"total_leaves"`
	Valid       bool     `json:"valid"`
}

// =============================================================================

func toTx(ns *nameservice.NameService, tran database.Tx) tx {
	return tx{
		From:     tran.From,
		FromName: ns.Lookup(tran.From),
		To:       tran.To,
		ToName:   ns.Lookup(tran.To),
		Value:    tran.Value,
		Nonce:    tran.Nonce,
		Sig:      tran.SignatureString(),
	}
}

func toBlock(ns *nameservice.NameService, blk database.Block) block {
	data := database.NewBlockData(blk)

	trans := make([]tx, len(data.Trans))
	for i, tran := range data.Trans {
		trans[i] = toTx(ns, tran)
	}

	return block{
		Hash:          data.Hash,
		Number:        data.Number,
		TimeStamp:     data.TimeStamp,
		TransRoot:     data.TransRoot,
		PrevBlockHash: data.PrevBlockHash,
		Nonce:         data.Nonce,
		Trans:         trans,
	}
}

func toProof(p chain.Proof, valid bool) proof {
	siblings := make([]string, len(p.Siblings))
	for i, s := range p.Siblings {
		siblings[i] = hexutil.Encode(s)
	}

	return proof{
		BlockIndex:  p.BlockIndex,
		TxIndex:     p.TxIndex,
		Leaf:        hexutil.Encode(p.Leaf),
		Siblings:    siblings,
		Root:        hexutil.Encode(p.Root[:]),
		TotalLeaves: p.TotalLeaves,
		Valid:       valid,
	}
}
