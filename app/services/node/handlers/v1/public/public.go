// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Chain   *chain.Chain
	Mempool *mempool.Mempool
	Worker  *worker.Worker
	NS      *nameservice.NameService
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch, err := h.Evts.Acquire(v.TraceID)
	if err != nil {
		closeShutdown(c)
		return nil
	}
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				closeShutdown(c)
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// closeShutdown tells the client the node is going away so it can tell a
// shutdown apart from a dropped connection.
func closeShutdown(c *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "node shutting down")
	c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Genesis(), http.StatusOK)
}

// ChainInfo returns the length, difficulty, and validity of the chain.
func (h Handlers) ChainInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := chainInfo{
		Length:      h.Chain.Length(),
		Difficulty:  h.Chain.Difficulty(),
		Valid:       h.Chain.IsChainValid(),
		LatestHash:  h.Chain.LatestBlock().Hash(),
		Uncommitted: h.Mempool.Count(),
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// Blocks returns all the blocks and their details.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blks := h.Chain.Blocks()

	blocks := make([]block, len(blks))
	for i, blk := range blks {
		blocks[i] = toBlock(h.NS, blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByIndex returns the block at the specified position in the chain.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block index: %w", err), http.StatusBadRequest)
	}

	blk, err := h.Chain.BlockByIndex(index)
	if err != nil {
		if errors.Is(err, chain.ErrBlockNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, toBlock(h.NS, blk), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pool := h.Mempool.Copy()

	trans := make([]tx, len(pool))
	for i, tran := range pool {
		trans[i] = toTx(h.NS, tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a signed wallet transaction to the mempool and
// signals the worker to mine.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tran database.Tx
	if err := web.Decode(r, &tran); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "from:nonce", tran, "to", tran.To, "value", tran.Value)

	if err := tran.Validate(); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if _, _, err := h.Chain.FindTransaction(tran); err == nil {
		return errs.NewTrusted(fmt.Errorf("transaction %s already committed", tran), http.StatusConflict)
	}

	n := h.Mempool.Upsert(tran)
	h.Worker.SignalStartMining()

	resp := struct {
		Status      string `json:"status"`
		Uncommitted int    `json:"uncommitted"`
	}{
		Status:      "transaction added to mempool",
		Uncommitted: n,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// TransactionProof checks the transaction is committed to the chain and
// returns the merkle proof a wallet can verify on its own.
func (h Handlers) TransactionProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tran database.Tx
	if err := web.Decode(r, &tran); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	p, err := h.Chain.InclusionProof(tran)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	valid, err := h.Chain.CheckTransactionValidity(tran)
	if err != nil && !errors.Is(err, chain.ErrProofMismatch) {
		return err
	}

	return web.Respond(ctx, w, toProof(p, valid), http.StatusOK)
}

// SignalMining asks the worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.SignalStartMining()

	resp := struct {
		Status      string `json:"status"`
		Uncommitted int    `json:"uncommitted"`
	}{
		Status:      "mining signalled",
		Uncommitted: h.Mempool.Count(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
