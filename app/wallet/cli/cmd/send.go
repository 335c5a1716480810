package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"io"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to    string
	value uint64
	nonce uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		return sendWithDetails(cmd.OutOrStdout(), privateKey)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addTxFlags(sendCmd)
}

// addTxFlags binds the flags that describe a transaction.
func addTxFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&to, "to", "t", "", "Address of the receiver.")
	cmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	cmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Sender scoped sequence number.")
	cmd.MarkFlagRequired("to")
}

// signedTx builds the transaction from the flags and signs it. Signing is
// deterministic so the same flags always produce the same signature.
func signedTx(privateKey *ecdsa.PrivateKey) (database.Tx, error) {
	from := signature.AddressFromPublicKey(privateKey.PublicKey)
	return database.NewTx(from, to, value, nonce).Sign(privateKey)
}

func sendWithDetails(w io.Writer, privateKey *ecdsa.PrivateKey) error {
	tx, err := signedTx(privateKey)
	if err != nil {
		return err
	}

	var resp submitView
	if err := newNodeClient(url).post("/v1/tx/submit", tx, &resp); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %s: uncommitted[%d]\n", tx, resp.Status, resp.Uncommitted)
	return nil
}
