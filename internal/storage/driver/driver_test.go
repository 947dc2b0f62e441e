package driver

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/storage/memory"
	"github.com/albapepper/matchday/internal/storage/sqlite"
)

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	mem, err := Open(ctx, &config.Config{StoreDriver: config.DriverMemory}, true, logger)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*memory.Store); !ok {
		t.Fatalf("memory driver returned %T", mem)
	}

	lite, err := Open(ctx, &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")}, true, logger)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer lite.Close()
	if _, ok := lite.(*sqlite.Store); !ok {
		t.Fatalf("sqlite driver returned %T", lite)
	}
	if err := lite.Ping(ctx); err != nil {
		t.Fatalf("sqlite ping: %v", err)
	}

	if _, err := Open(ctx, &config.Config{StoreDriver: "oracle"}, true, logger); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
