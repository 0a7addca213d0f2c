package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MarginEngine/internal/fixedpoint"
	"MarginEngine/internal/persistence"
	"MarginEngine/internal/state"
	"MarginEngine/internal/testutil"
)

func setupStore(t *testing.T) (*persistence.SnapshotStore, context.Context) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return persistence.NewSnapshotStore(db), ctx
}

func TestSnapshotStore_LoadLatest_EmptyReturnsNil(t *testing.T) {
	store, ctx := setupStore(t)

	snap, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot on fresh install, got %+v", snap)
	}
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	store, ctx := setupStore(t)

	want := &persistence.SnapshotData{
		UserBalances: map[string]state.UserBalance{
			"user-1": {UserID: "user-1", Balance: 9_000 * fixedpoint.Scale, LockedMargin: 1_000 * fixedpoint.Scale},
		},
		OpenPositions: map[string]state.Position{
			"order-1": {OrderID: "order-1", UserID: "user-1", Asset: "ETH", Margin: 1_000 * fixedpoint.Scale},
		},
		CurrentPrices: map[string]state.PriceTick{
			"ETH_USDC_PERP": {Symbol: "ETH_USDC_PERP", Price: 100 * fixedpoint.Scale, Sequence: 7},
		},
		LastOffset: 1234,
		CreatedAt:  time.Now(),
	}

	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got == nil {
		t.Fatal("snapshot missing after save")
	}
	if got.LastOffset != 1234 {
		t.Errorf("offset = %d, want 1234", got.LastOffset)
	}
	if got.UserBalances["user-1"].LockedMargin != 1_000*fixedpoint.Scale {
		t.Errorf("balances not round-tripped: %+v", got.UserBalances)
	}
	if got.OpenPositions["order-1"].Asset != "ETH" {
		t.Errorf("positions not round-tripped: %+v", got.OpenPositions)
	}
	if got.CurrentPrices["ETH_USDC_PERP"].Sequence != 7 {
		t.Errorf("prices not round-tripped: %+v", got.CurrentPrices)
	}
}

func TestSnapshotStore_SaveReplacesInPlace(t *testing.T) {
	store, ctx := setupStore(t)

	first := &persistence.SnapshotData{LastOffset: 10, CreatedAt: time.Now()}
	second := &persistence.SnapshotData{LastOffset: 20, CreatedAt: time.Now()}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.LastOffset != 20 {
		t.Errorf("offset = %d, want 20 (latest save wins)", got.LastOffset)
	}
}

func TestSnapshotStore_SaveInitialDoesNotClobber(t *testing.T) {
	store, ctx := setupStore(t)

	real := &persistence.SnapshotData{
		UserBalances: map[string]state.UserBalance{"user-1": {UserID: "user-1", Balance: 1}},
		LastOffset:   500,
		CreatedAt:    time.Now(),
	}
	if err := store.Save(ctx, real); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A racing cold-start baseline must not overwrite real state.
	if err := store.SaveInitial(ctx, 9999); err != nil {
		t.Fatalf("SaveInitial: %v", err)
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.LastOffset != 500 {
		t.Errorf("offset = %d, want 500", got.LastOffset)
	}
}

func TestSnapshotStore_SaveInitialSeedsOffset(t *testing.T) {
	store, ctx := setupStore(t)

	if err := store.SaveInitial(ctx, 777); err != nil {
		t.Fatalf("SaveInitial: %v", err)
	}

	got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got == nil || got.LastOffset != 777 {
		t.Errorf("baseline snapshot = %+v, want offset 777", got)
	}
	if len(got.UserBalances) != 0 || len(got.OpenPositions) != 0 {
		t.Errorf("baseline snapshot should be empty, got %+v", got)
	}
}
