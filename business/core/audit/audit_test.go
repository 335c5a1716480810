package audit_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/business/core/audit"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type brokenChain struct{}

func (brokenChain) ValidateChain() error { return chain.ErrChainInvalid }
func (brokenChain) Length() int          { return 2 }

func TestAudit(t *testing.T) {
	t.Log("Given the need to audit the chain on a schedule.")
	{
		log := zap.NewNop().Sugar()

		gen := genesis.Default()
		gen.Difficulty = 0

		chn, err := chain.New(gen, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the chain : %v", failed, err)
		}

		a, err := audit.New(log, chn, "@every 1m")
		if err != nil {
			t.Fatalf("\t%s\tShould accept the schedule : %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the schedule.", success)

		if err := a.Audit(); err != nil {
			t.Fatalf("\t%s\tShould find the genesis chain valid : %v", failed, err)
		}
		t.Logf("\t%s\tShould find the genesis chain valid.", success)

		b, err := audit.New(log, brokenChain{}, "@every 1m")
		if err != nil {
			t.Fatalf("\t%s\tShould accept the schedule : %v", failed, err)
		}

		if err := b.Audit(); !errors.Is(err, chain.ErrChainInvalid) {
			t.Fatalf("\t%s\tShould report the invalid chain : %v", failed, err)
		}
		t.Logf("\t%s\tShould report the invalid chain.", success)

		if st := b.Stats(); st.Runs != 1 || st.Failures != 1 {
			t.Fatalf("\t%s\tShould count the failed run : %+v", failed, st)
		}
		t.Logf("\t%s\tShould count the failed run.", success)

		a.Start()
		a.Stop()
		t.Logf("\t%s\tShould start and stop the schedule.", success)
	}
}

func TestAuditSchedule(t *testing.T) {
	t.Log("Given the need to reject a bad schedule.")
	{
		if _, err := audit.New(zap.NewNop().Sugar(), brokenChain{}, "every minute"); err == nil {
			t.Fatalf("\t%s\tShould reject the schedule.", failed)
		}
		t.Logf("\t%s\tShould reject the schedule.", success)
	}
}
