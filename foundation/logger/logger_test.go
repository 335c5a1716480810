package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/foundation/logger"
)

func TestNewRotating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")

	log, err := logger.NewRotating("TEST", logger.FileConfig{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Should be able to construct the logger: %v", err)
	}

	log.Infow("startup", "status", "testing rotation")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Should be able to read the log file: %v", err)
	}

	if !strings.Contains(string(data), `"service":"TEST"`) || !strings.Contains(string(data), "testing rotation") {
		t.Fatalf("Should write the entry to the log file, got %s", data)
	}
}

func TestNew(t *testing.T) {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("Should be able to construct the logger: %v", err)
	}
	log.Infow("startup", "status", "testing")

	if _, err := logger.NewRotating("TEST", logger.FileConfig{}); err != nil {
		t.Fatalf("Should fall back to stdout without a file: %v", err)
	}
}
