package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarginEngine/internal/state"
)

// SnapshotStore persists the engine checkpoint to Postgres. The system
// keeps no snapshot history: one logical row, replaced in place on every
// save. The input log remains the source of truth for events; the snapshot
// only bounds how far back replay must go.
type SnapshotStore struct {
	db *sql.DB
}

// snapshotRowID is the single logical row.
const snapshotRowID = 1

// SnapshotData is the serialized engine checkpoint: the full balance,
// position and price maps plus the input log offset through which they are
// valid. The offset must identify the last input event whose effects are
// reflected in the maps; that pairing is the linchpin of crash
// consistency.
type SnapshotData struct {
	UserBalances  map[string]state.UserBalance `json:"userBalances"`
	OpenPositions map[string]state.Position    `json:"openPositions"`
	CurrentPrices map[string]state.PriceTick   `json:"currentPrices"`
	LastOffset    uint64                       `json:"lastOffset"`
	CreatedAt     time.Time                    `json:"createdAt"`
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save upserts the snapshot row.
func (s *SnapshotStore) Save(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engine_snapshots (id, data, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = $2, created_at = NOW()
	`, snapshotRowID, data)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SaveInitial writes the empty baseline snapshot at the given log offset.
// It does nothing if a snapshot already exists, so a crash between the
// baseline write and the first periodic save cannot clobber real state.
func (s *SnapshotStore) SaveInitial(ctx context.Context, offset uint64) error {
	snap := &SnapshotData{
		UserBalances:  map[string]state.UserBalance{},
		OpenPositions: map[string]state.Position{},
		CurrentPrices: map[string]state.PriceTick{},
		LastOffset:    offset,
		CreatedAt:     time.Now(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal initial snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engine_snapshots (id, data, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`, snapshotRowID, data)
	if err != nil {
		return fmt.Errorf("save initial snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the persisted snapshot, or nil if none exists yet
// (fresh install).
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*SnapshotData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM engine_snapshots WHERE id = $1
	`, snapshotRowID)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
