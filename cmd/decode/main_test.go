package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pulsewire/pulsewire/internal/storage"
	"github.com/pulsewire/pulsewire/internal/testutil/testlog"
)

func TestPrintUnknownReadsArchive(t *testing.T) {
	testlog.Start(t)
	dbPath := filepath.Join(t.TempDir(), "unknown.db")

	store := storage.NewStore(dbPath)
	ctx := context.Background()
	if _, err := store.SaveUnknown(ctx, &storage.UnknownSignal{
		Modulation: "OOK", PulseCount: 24, Hex: "AAB1022570FFFF8155",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.SaveUnknown(ctx, &storage.UnknownSignal{Modulation: "FSK"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := printUnknown(dbPath, 10); err != nil {
		t.Fatalf("print: %v", err)
	}
}

func TestPrintUnknownMissingDirectory(t *testing.T) {
	testlog.Start(t)
	dbPath := filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")

	if err := printUnknown(dbPath, 10); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
