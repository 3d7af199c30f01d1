package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSaveAndListUnknown(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "unknown.db"))
	defer store.Close()
	ctx := context.Background()

	pkg := uint64(41)
	id, err := store.SaveUnknown(ctx, &UnknownSignal{
		PackageID:   &pkg,
		Modulation:  "OOK",
		FreqHz:      433920000,
		RateHz:      250000,
		PulseCount:  24,
		Hex:         "AAB1022570FFFF8155",
		PayloadJSON: `{"mod":"OOK"}`,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id <= 0 {
		t.Fatalf("insert id: %d", id)
	}

	if _, err := store.SaveUnknown(ctx, &UnknownSignal{Modulation: "FSK"}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	recs, err := store.ListUnknown(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Newest first.
	if recs[0].Modulation != "FSK" {
		t.Fatalf("order: %+v", recs)
	}
	if recs[1].PackageID == nil || *recs[1].PackageID != pkg {
		t.Fatalf("package id not restored: %+v", recs[1])
	}
	if recs[1].Hex != "AAB1022570FFFF8155" || recs[1].PulseCount != 24 {
		t.Fatalf("fields not restored: %+v", recs[1])
	}

	n, err := store.CountUnknown(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count: %d", n)
	}
}

func TestStoreMissingDirectoryFails(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "no", "such", "dir", "x.db"))
	defer store.Close()

	if _, err := store.SaveUnknown(context.Background(), &UnknownSignal{Modulation: "OOK"}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
