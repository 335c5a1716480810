package cmd

import (
	"fmt"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/go-resty/resty/v2"
)

type txView struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Value    uint64 `json:"value"`
	Nonce    uint64 `json:"nonce"`
	Sig      string `json:"sig"`
}

type blockView struct {
	Hash          string   `json:"hash"`
	Number        string   `json:"number"`
	TimeStamp     uint64   `json:"timestamp"`
	TransRoot     string   `json:"trans_root"`
	PrevBlockHash string   `json:"prev_block_hash"`
	Nonce         uint64   `json:"nonce"`
	Trans         []txView `json:"trans"`
}

type proofView struct {
	BlockIndex  int      `json:"block_index"`
	TxIndex     int      `json:"tx_index"`
	Leaf        string   `json:"leaf"`
	Siblings    []string `json:"siblings"`
	Root        string   `json:"root"`
	TotalLeaves int      `json:"total_leaves"`
	Valid       bool     `json:"valid"`
}

type submitView struct {
	Status      string `json:"status"`
	Uncommitted int    `json:"uncommitted"`
}

// =============================================================================

// nodeClient talks to the node's public v1 api.
type nodeClient struct {
	rc *resty.Client
}

func newNodeClient(baseURL string) nodeClient {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return nodeClient{rc: rc}
}

func (nc nodeClient) get(path string, result any) error {
	var er errs.Response
	resp, err := nc.rc.R().SetResult(result).SetError(&er).Get(path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("get %s: %s: %s", path, resp.Status(), er.Error)
	}

	return nil
}

func (nc nodeClient) post(path string, body any, result any) error {
	var er errs.Response
	resp, err := nc.rc.R().SetBody(body).SetResult(result).SetError(&er).Post(path)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("post %s: %s: %s", path, resp.Status(), er.Error)
	}

	return nil
}
