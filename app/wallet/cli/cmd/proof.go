package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Prove a sent transaction was committed to the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		tx, err := signedTx(privateKey)
		if err != nil {
			return err
		}

		var p proofView
		if err := newNodeClient(url).post("/v1/tx/proof", tx, &p); err != nil {
			return err
		}

		leaf, err := tx.Hash()
		if err != nil {
			return err
		}

		return verifyProof(cmd.OutOrStdout(), leaf, p)
	},
}

func init() {
	rootCmd.AddCommand(proofCmd)
	addTxFlags(proofCmd)
}

// verifyProof checks the proof returned by the node against the leaf hash
// computed locally, so the node's word is not trusted.
func verifyProof(w io.Writer, leaf []byte, p proofView) error {
	nodeLeaf, err := hexutil.Decode(p.Leaf)
	if err != nil {
		return fmt.Errorf("decode leaf: %w", err)
	}

	if !bytes.Equal(leaf, nodeLeaf) {
		return errors.New("node returned a proof for a different transaction")
	}

	root, err := hexutil.Decode(p.Root)
	if err != nil {
		return fmt.Errorf("decode root: %w", err)
	}

	siblings := make([][]byte, len(p.Siblings))
	for i, s := range p.Siblings {
		if siblings[i], err = hexutil.Decode(s); err != nil {
			return fmt.Errorf("decode sibling %d: %w", i, err)
		}
	}

	if !merkle.VerifyProof(root, leaf, p.TxIndex, siblings, p.TotalLeaves) {
		return fmt.Errorf("proof does not match root %s", p.Root)
	}

	fmt.Fprintf(w, "verified: block[%d] tx[%d] root[%s]\n", p.BlockIndex, p.TxIndex, p.Root)
	return nil
}
