package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the chain as a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return blocksRun(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}

func blocksRun(w io.Writer) error {
	var blocks []blockView
	if err := newNodeClient(url).get("/v1/blocks/list", &blocks); err != nil {
		return err
	}

	rows := make([][]string, len(blocks))
	for i, blk := range blocks {
		rows[i] = []string{
			blk.Number,
			short(blk.Hash),
			short(blk.PrevBlockHash),
			strconv.FormatUint(blk.Nonce, 10),
			time.Unix(int64(blk.TimeStamp), 0).UTC().Format(time.RFC3339),
			strconv.Itoa(len(blk.Trans)),
		}
	}

	table := tablewriter.NewTable(w)
	table.Header([]string{"Number", "Hash", "Prev Hash", "Nonce", "Time", "Txs"})
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("table rows: %w", err)
	}

	return table.Render()
}

// short trims a hash for display.
func short(hash string) string {
	const size = 16
	if len(hash) <= size {
		return hash
	}
	return hash[:size] + "..."
}
