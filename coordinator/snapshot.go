package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/kbukum/taskgraph/errors"
)

// SnapshotFile is the name of the state file written under a state directory.
const SnapshotFile = "taskgraph-state.json"

const lockRetryDelay = 100 * time.Millisecond

// Snapshot is the persisted view of a run.
type Snapshot struct {
	RunID   string        `json:"runId"`
	SavedAt time.Time     `json:"savedAt"`
	State   StateSnapshot `json:"state"`
	Summary RunSummary    `json:"summary"`
}

// Snapshot captures the current state and summary.
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		RunID:   c.cfg.RunID,
		SavedAt: c.now().UTC(),
		State:   c.State(),
		Summary: c.RunSummary(),
	}
}

// WriteSnapshot stores snap in dir, replacing any previous file. Writers
// and readers in other processes are serialized with a lock file.
func WriteSnapshot(ctx context.Context, dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Storage("create state dir", err)
	}

	path := filepath.Join(dir, SnapshotFile)
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Storage("lock state file", err)
	}
	if !locked {
		return errors.Storage("lock state file", fmt.Errorf("lock %s not acquired", lock.Path()))
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Internal(fmt.Errorf("encoding snapshot: %w", err))
	}

	tmp, err := os.CreateTemp(dir, SnapshotFile+".*.tmp")
	if err != nil {
		return errors.Storage("write state file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Storage("write state file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Storage("write state file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Storage("replace state file", err)
	}
	return nil
}

// ReadSnapshot loads the snapshot stored in dir. A missing file returns a
// NOT_FOUND error.
func ReadSnapshot(ctx context.Context, dir string) (*Snapshot, error) {
	path := filepath.Join(dir, SnapshotFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound("state file", path)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, errors.Storage("lock state file", err)
	}
	if !locked {
		return nil, errors.Storage("lock state file", fmt.Errorf("lock %s not acquired", lock.Path()))
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Storage("read state file", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Storage("decode state file", err)
	}
	return &snap, nil
}

// SnapshotStore persists run snapshots. LoadSnapshot with an empty run id
// returns the most recently saved snapshot. Missing snapshots are NOT_FOUND
// errors.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error)
}

// DirStore is a SnapshotStore keeping the latest snapshot in a directory.
type DirStore struct {
	Dir string
}

var _ SnapshotStore = DirStore{}

// SaveSnapshot writes snap to the directory.
func (s DirStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	return WriteSnapshot(ctx, s.Dir, snap)
}

// LoadSnapshot reads the directory's snapshot. A snapshot of another run is
// NOT_FOUND.
func (s DirStore) LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	snap, err := ReadSnapshot(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	if runID != "" && snap.RunID != runID {
		return nil, errors.NotFound("snapshot", runID)
	}
	return snap, nil
}
