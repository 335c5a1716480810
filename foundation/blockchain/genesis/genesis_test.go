package genesis_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Load(t *testing.T) {
	type table struct {
		name          string
		file          string
		content       string
		difficulty    uint16
		transPerBlock uint16
		value         uint64
	}

	tt := []table{
		{
			name:          "json",
			file:          "genesis.json",
			content:       `{"date":"2024-01-01T00:00:00Z","difficulty":2,"trans_per_block":3,"coinbase":{"from":"me","to":"me","value":50,"nonce":0,"sig":"coinbase"}}`,
			difficulty:    2,
			transPerBlock: 3,
			value:         50,
		},
		{
			name:          "jsonpartial",
			file:          "genesis.json",
			content:       `{"difficulty":1}`,
			difficulty:    1,
			transPerBlock: 1,
			value:         10,
		},
		{
			name: "toml",
			file: "genesis.toml",
			content: `date = 2024-01-01T00:00:00Z
difficulty = 3
trans_per_block = 2

[coinbase]
from = "me"
to = "me"
value = 20
nonce = 0
sig = "coinbase"
`,
			difficulty:    3,
			transPerBlock: 2,
			value:         20,
		},
	}

	t.Log("Given the need to load a genesis file.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s file.", testID, tst.name)
			{
				f := func(t *testing.T) {
					path := filepath.Join(t.TempDir(), tst.file)
					if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
					}

					gen, err := genesis.Load(path)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the file: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to load the file.", success, testID)

					if gen.Difficulty != tst.difficulty {
						t.Fatalf("\t%s\tTest %d:\tShould get back the right difficulty: got %d, exp %d", failed, testID, gen.Difficulty, tst.difficulty)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right difficulty.", success, testID)

					if gen.TransPerBlock != tst.transPerBlock {
						t.Fatalf("\t%s\tTest %d:\tShould get back the right block size: got %d, exp %d", failed, testID, gen.TransPerBlock, tst.transPerBlock)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right block size.", success, testID)

					if gen.Coinbase.Value != tst.value {
						t.Fatalf("\t%s\tTest %d:\tShould get back the right coinbase value: got %d, exp %d", failed, testID, gen.Coinbase.Value, tst.value)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right coinbase value.", success, testID)

					exp := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
					if !gen.Date.Equal(exp) {
						t.Fatalf("\t%s\tTest %d:\tShould get back the right date: got %s", failed, testID, gen.Date)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right date.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_LoadInvalid(t *testing.T) {
	tt := []struct {
		name    string
		file    string
		content string
	}{
		{name: "badjson", file: "genesis.json", content: `{"difficulty":`},
		{name: "difficulty", file: "genesis.json", content: `{"difficulty":65}`},
		{name: "blocksize", file: "genesis.json", content: `{"trans_per_block":0}`},
		{name: "coinbase", file: "genesis.toml", content: "[coinbase]\nfrom = \"\"\n"},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tst.file)
			if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
				t.Fatalf("Should be able to write the file: %v", err)
			}

			if _, err := genesis.Load(path); err == nil {
				t.Fatalf("Test %s:\tShould not be able to load an invalid genesis file.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}

	if _, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Should not be able to load a missing genesis file.")
	}
}

func Test_Default(t *testing.T) {
	gen := genesis.Default()

	if err := gen.Validate(); err != nil {
		t.Fatalf("Should have a valid default genesis: %v", err)
	}

	if gen.Difficulty != 4 {
		t.Fatalf("Should have a default difficulty of 4, got %d", gen.Difficulty)
	}

	cb := gen.Coinbase
	if cb.From != "me" || cb.To != "me" || cb.Value != 10 || cb.Nonce != 0 || cb.Sig != "coinbase" {
		t.Fatalf("Should have the default coinbase transaction, got %+v", cb)
	}
}
