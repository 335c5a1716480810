package miner_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/miner"
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

func Test_MineDifficultyZero(t *testing.T) {
	const calls = 25

	c := newChain(t, 0)

	tt := []struct {
		name    string
		workers int
	}{
		{name: "numcpu", workers: 0},
		{name: "one", workers: 1},
		{name: "many", workers: 16},
	}

	t.Log("Given the need to mine blocks with no difficulty.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen mining %d blocks with %s workers.", testID, calls, tst.name)
			{
				f := func(t *testing.T) {
					m := miner.New(c, miner.Config{Workers: tst.workers})

					for i := 0; i < calls; i++ {
						before := c.Length()

						if _, err := m.Mine(context.Background(), signedTrans(t, testID*1000+i*10, 2)); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to mine block %d: %v", failed, testID, i, err)
						}

						if c.Length() != before+1 {
							t.Fatalf("\t%s\tTest %d:\tShould grow the chain by exactly 1, got %d -> %d.", failed, testID, before, c.Length())
						}
					}
					t.Logf("\t%s\tTest %d:\tShould grow the chain by exactly 1 per call.", success, testID)

					if err := c.ValidateChain(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould have a valid chain: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould have a valid chain.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_MineGenesisScenario(t *testing.T) {
	c := newChain(t, 0)
	genHash := c.LatestBlock().Hash()

	m := miner.New(c, miner.Config{})

	block, err := m.Mine(context.Background(), signedTrans(t, 0, 1))
	if err != nil {
		t.Fatalf("Should be able to mine the first block: %v", err)
	}

	if c.Length() != 2 {
		t.Fatalf("Should have a length of 2, got %d", c.Length())
	}

	if block.Header.PrevBlockHash != genHash {
		t.Fatalf("Should link to the genesis hash: got %s, exp %s", block.Header.PrevBlockHash, genHash)
	}

	if c.LatestBlock().Hash() != block.Hash() {
		t.Fatalf("Should return the block that was appended.")
	}
}

func Test_MineDifficulty(t *testing.T) {
	c := newChain(t, 2)

	tt := []struct {
		name string
		mine func(m *miner.Miner, trans []database.Tx) (database.Block, error)
	}{
		{
			name: "concurrent",
			mine: func(m *miner.Miner, trans []database.Tx) (database.Block, error) {
				return m.Mine(context.Background(), trans)
			},
		},
		{
			name: "single",
			mine: func(m *miner.Miner, trans []database.Tx) (database.Block, error) {
				return m.MineSingle(context.Background(), trans)
			},
		},
	}

	for i, tst := range tt {
		f := func(t *testing.T) {
			m := miner.New(c, miner.Config{Workers: 4})

			block, err := tst.mine(m, signedTrans(t, i*10, 3))
			if err != nil {
				t.Fatalf("Should be able to mine a block: %v", err)
			}

			if !strings.HasPrefix(block.Hash(), "00") {
				t.Fatalf("Should solve a difficulty of 2, got %s", block.Hash())
			}

			if !c.IsChainValid() {
				t.Fatalf("Should have a valid chain: %v", c.ValidateChain())
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_MineNoTransactions(t *testing.T) {
	m := miner.New(newChain(t, 0), miner.Config{})

	if _, err := m.Mine(context.Background(), nil); !errors.Is(err, miner.ErrNoTransactions) {
		t.Fatalf("Should get back ErrNoTransactions, got %v", err)
	}
}

func Test_MineFailures(t *testing.T) {
	const workers = 4

	tt := []struct {
		name   string
		append func(database.Block) error
		target error
	}{
		{
			name:   "panic",
			append: func(database.Block) error { panic("disk on fire") },
			target: miner.ErrWorkerPanic,
		},
		{
			name:   "superseded",
			append: func(database.Block) error { return database.ErrStaleBlock },
			target: miner.ErrSuperseded,
		},
		{
			name:   "invalid",
			append: func(database.Block) error { return database.ErrBlockInvalid },
			target: database.ErrBlockInvalid,
		},
	}

	t.Log("Given the need to report mining failures.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen every worker fails with %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					fc := newFakeChain(t, tst.append)
					m := miner.New(fc, miner.Config{Workers: workers})

					_, err := m.Mine(context.Background(), signedTrans(t, 0, 1))
					if !errors.Is(err, miner.ErrMiningFailed) {
						t.Fatalf("\t%s\tTest %d:\tShould get back ErrMiningFailed, got %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get back ErrMiningFailed.", success, testID)

					if !errors.Is(err, tst.target) {
						t.Fatalf("\t%s\tTest %d:\tShould wrap %v, got %v", failed, testID, tst.target, err)
					}
					t.Logf("\t%s\tTest %d:\tShould wrap %v.", success, testID, tst.target)

					if got := fc.calls(); got != workers {
						t.Fatalf("\t%s\tTest %d:\tShould wait on all %d workers, got %d attempts.", failed, testID, workers, got)
					}
					t.Logf("\t%s\tTest %d:\tShould wait on all workers.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_NoncePartition(t *testing.T) {
	const workers = 6

	fc := newFakeChain(t, func(database.Block) error { return database.ErrStaleBlock })
	m := miner.New(fc, miner.Config{Workers: workers})

	if _, err := m.Mine(context.Background(), signedTrans(t, 0, 1)); !errors.Is(err, miner.ErrSuperseded) {
		t.Fatalf("Should get back ErrSuperseded, got %v", err)
	}

	nonces := fc.nonces()
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })

	if len(nonces) != workers {
		t.Fatalf("Should get one candidate per worker, got %d", len(nonces))
	}

	for i, nonce := range nonces {
		if nonce != uint64(i) {
			t.Fatalf("Should start worker %d at nonce %d, got %d", i, i, nonce)
		}
	}
}

func Test_MineCancel(t *testing.T) {
	c := newChain(t, 64)
	m := miner.New(c, miner.Config{Workers: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := m.Mine(ctx, signedTrans(t, 0, 1))
	if !errors.Is(err, miner.ErrMiningFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Should get back a deadline failure, got %v", err)
	}

	if c.Length() != 1 {
		t.Fatalf("Should leave the chain unchanged, got length %d", c.Length())
	}
}

func Test_MineTimestamp(t *testing.T) {
	t.Log("Given the need to stamp candidate blocks with the current time.")
	{
		t.Logf("\tTest 0:\tWhen the refresh interval elapses before the block is solved.")
		{
			var appended database.Block
			fc := newFakeChain(t, func(b database.Block) error {
				appended = b
				return nil
			})

			base := fc.tail.Header.TimeStamp + 100
			var ticks atomic.Uint64

			var mu sync.Mutex
			var events []string
			ev := func(v string, args ...any) {
				mu.Lock()
				defer mu.Unlock()
				events = append(events, v)
			}

			m := miner.New(fc, miner.Config{Workers: 1, RefreshInterval: 1, EvHandler: ev})
			miner.SetClock(m, func() uint64 {
				return base + ticks.Add(1) - 1
			})

			if _, err := m.Mine(context.Background(), signedTrans(t, 0, 1)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine the block : %v", failed, err)
			}

			if appended.Header.TimeStamp != base+1 {
				t.Fatalf("\t%s\tTest 0:\tShould append the refreshed timestamp : got %d, exp %d", failed, appended.Header.TimeStamp, base+1)
			}
			t.Logf("\t%s\tTest 0:\tShould append the refreshed timestamp.", success)

			mu.Lock()
			refreshed := false
			for _, e := range events {
				if strings.Contains(e, "timestamp refreshed") {
					refreshed = true
				}
			}
			mu.Unlock()

			if !refreshed {
				t.Fatalf("\t%s\tTest 0:\tShould report the refresh event.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report the refresh event.", success)
		}

		t.Logf("\tTest 1:\tWhen the clock is behind the parent block.")
		{
			var appended database.Block
			fc := newFakeChain(t, func(b database.Block) error {
				appended = b
				return nil
			})

			m := miner.New(fc, miner.Config{Workers: 1, RefreshInterval: 1})
			miner.SetClock(m, func() uint64 { return 0 })

			if _, err := m.Mine(context.Background(), signedTrans(t, 0, 1)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine the block : %v", failed, err)
			}

			if appended.Header.TimeStamp != fc.tail.Header.TimeStamp {
				t.Fatalf("\t%s\tTest 1:\tShould stamp the parent's timestamp : got %d, exp %d", failed, appended.Header.TimeStamp, fc.tail.Header.TimeStamp)
			}
			t.Logf("\t%s\tTest 1:\tShould stamp the parent's timestamp.", success)
		}

		t.Logf("\tTest 2:\tWhen the genesis block is dated in the future.")
		{
			gen := genesis.Default()
			gen.Difficulty = 0
			gen.Date = time.Now().Add(24 * time.Hour)

			c, err := chain.New(gen, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to construct the chain : %v", failed, err)
			}

			block, err := miner.New(c, miner.Config{Workers: 4}).Mine(context.Background(), signedTrans(t, 0, 1))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to mine the block : %v", failed, err)
			}

			if c.Length() != 2 || block.Header.TimeStamp < uint64(c.Genesis().Date.UTC().Unix()) {
				t.Fatalf("\t%s\tTest 2:\tShould append a block not older than genesis : length %d, timestamp %d", failed, c.Length(), block.Header.TimeStamp)
			}
			t.Logf("\t%s\tTest 2:\tShould append a block not older than genesis.", success)
		}
	}
}

func Test_MineRace(t *testing.T) {
	c := newChain(t, 1)

	const miners = 4

	var wg sync.WaitGroup
	wg.Add(miners)

	for i := 0; i < miners; i++ {
		go func(i int) {
			defer wg.Done()

			m := miner.New(c, miner.Config{Workers: 2})
			for j := 0; j < 5; j++ {
				m.Mine(context.Background(), signedTrans(t, i*1000+j*10, 1))
			}
		}(i)
	}

	wg.Wait()

	if err := c.ValidateChain(); err != nil {
		t.Fatalf("Should have a valid chain after racing miners: %v", err)
	}

	if c.Length() < 2 {
		t.Fatalf("Should have mined at least one block, got length %d", c.Length())
	}
}

// =============================================================================

func newChain(t *testing.T, difficulty uint16) *chain.Chain {
	gen := genesis.Default()
	gen.Difficulty = difficulty

	c, err := chain.New(gen, nil)
	if err != nil {
		t.Fatalf("Should be able to construct the chain: %v", err)
	}

	return c
}

func signedTrans(t *testing.T, firstNonce int, n int) []database.Tx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	trans := make([]database.Tx, n)
	for i := range trans {
		tx, err := database.NewTx(from, to, 10, uint64(firstNonce+i+1)).Sign(pk)
		if err != nil {
			t.Fatalf("Should be able to sign transaction: %v", err)
		}
		trans[i] = tx
	}

	return trans
}

// fakeChain has a difficulty of zero so every worker offers its very first
// candidate to append.
type fakeChain struct {
	tail     database.Block
	appendFn func(database.Block) error

	mu   sync.Mutex
	seen []uint64
}

func newFakeChain(t *testing.T, fn func(database.Block) error) *fakeChain {
	genBlock, err := database.GenesisBlock(genesis.Default())
	if err != nil {
		t.Fatalf("Should be able to construct the genesis block: %v", err)
	}

	return &fakeChain{tail: genBlock, appendFn: fn}
}

func (fc *fakeChain) Snapshot() (database.Block, uint) {
	return fc.tail, 0
}

func (fc *fakeChain) AppendBlock(block database.Block) error {
	fc.mu.Lock()
	fc.seen = append(fc.seen, block.Header.Nonce)
	fc.mu.Unlock()

	return fc.appendFn(block)
}

func (fc *fakeChain) calls() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.seen)
}

func (fc *fakeChain) nonces() []uint64 {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	out := make([]uint64, len(fc.seen))
	copy(out, fc.seen)
	return out
}
