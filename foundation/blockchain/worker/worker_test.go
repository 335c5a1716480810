package worker_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/miner"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6b972ffcc631a62cae1bb9d80b7ff429c8eba4"
	to       = "0xf01813e4b85e178a83e29b8e7bf26bd830a25f32"
)

// =============================================================================

func Test_MiningWorkflow(t *testing.T) {
	t.Log("Given the need to mine transactions from the mempool.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen 5 transactions wait with 2 per block.", testID)
		{
			c, mp := setup(t, 0)

			for i := 0; i < 5; i++ {
				mp.Upsert(signTx(t, uint64(i+1)))
			}

			w := worker.Run(worker.Config{
				Miner:         miner.New(c, miner.Config{Workers: 2}),
				Mempool:       mp,
				TransPerBlock: 2,
				EvHandler:     func(v string, args ...any) { t.Logf(v, args...) },
			})
			defer w.Shutdown()

			w.SignalStartMining()

			if !waitFor(func() bool { return c.Length() == 3 && mp.Count() == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould mine 2 blocks leaving 1 transaction, got length %d, pool %d.", failed, testID, c.Length(), mp.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould mine 2 blocks leaving 1 transaction.", success, testID)

			if !c.IsChainValid() {
				t.Fatalf("\t%s\tTest %d:\tShould have a valid chain: %v", failed, testID, c.ValidateChain())
			}
			t.Logf("\t%s\tTest %d:\tShould have a valid chain.", success, testID)

			mp.Upsert(signTx(t, 6))
			w.SignalStartMining()

			if !waitFor(func() bool { return c.Length() == 4 && mp.Count() == 0 }) {
				t.Fatalf("\t%s\tTest %d:\tShould mine the remaining transactions, got length %d, pool %d.", failed, testID, c.Length(), mp.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould mine the remaining transactions.", success, testID)
		}
	}
}

func Test_MiningNotEnough(t *testing.T) {
	c, mp := setup(t, 0)
	mp.Upsert(signTx(t, 1))

	w := worker.Run(worker.Config{
		Miner:         miner.New(c, miner.Config{Workers: 1}),
		Mempool:       mp,
		TransPerBlock: 2,
	})

	w.SignalStartMining()
	time.Sleep(100 * time.Millisecond)
	w.Shutdown()

	if c.Length() != 1 || mp.Count() != 1 {
		t.Fatalf("Should not mine with too few transactions, got length %d, pool %d", c.Length(), mp.Count())
	}
}

func Test_MiningCancel(t *testing.T) {
	c, mp := setup(t, 64)
	mp.Upsert(signTx(t, 1))

	w := worker.Run(worker.Config{
		Miner:         miner.New(c, miner.Config{Workers: 2}),
		Mempool:       mp,
		TransPerBlock: 1,
	})

	w.SignalStartMining()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Should be able to shutdown while mining an unsolvable block.")
	}

	if c.Length() != 1 || mp.Count() != 1 {
		t.Fatalf("Should leave the chain and mempool unchanged, got length %d, pool %d", c.Length(), mp.Count())
	}
}

// =============================================================================

func setup(t *testing.T, difficulty uint16) (*chain.Chain, *mempool.Mempool) {
	gen := genesis.Default()
	gen.Difficulty = difficulty

	c, err := chain.New(gen, nil)
	if err != nil {
		t.Fatalf("Should be able to construct the chain: %v", err)
	}

	mp, err := mempool.New()
	if err != nil {
		t.Fatalf("Should be able to construct the mempool: %v", err)
	}

	return c, mp
}

func signTx(t *testing.T, nonce uint64) database.Tx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	tx, err := database.NewTx(from, to, 10, nonce).Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign transaction: %s", err)
	}

	return tx
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
