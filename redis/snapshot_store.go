package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/errors"
)

const latestKey = "latest"

// SnapshotStore implements coordinator.SnapshotStore on Redis.
type SnapshotStore struct {
	client *Client
	prefix string
	ttl    time.Duration
}

var _ coordinator.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a store using the client's key prefix and TTL.
func NewSnapshotStore(client *Client) *SnapshotStore {
	cfg := client.Config()
	return &SnapshotStore{
		client: client,
		prefix: cfg.KeyPrefix + ":snapshot:",
		ttl:    cfg.SnapshotTTL,
	}
}

func (s *SnapshotStore) key(name string) string {
	return s.prefix + name
}

// SaveSnapshot stores snap under its run id and marks it as the latest.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap coordinator.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Internal(fmt.Errorf("encoding snapshot: %w", err))
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.key(snap.RunID), data, s.ttl)
		p.Set(ctx, s.key(latestKey), snap.RunID, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Storage("redis save snapshot", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot of runID, or the latest one when runID
// is empty.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, runID string) (*coordinator.Snapshot, error) {
	if runID == "" {
		latest, err := s.client.rdb.Get(ctx, s.key(latestKey)).Result()
		if stderrors.Is(err, goredis.Nil) {
			return nil, errors.NotFound("snapshot", "")
		}
		if err != nil {
			return nil, errors.Storage("redis load snapshot", err)
		}
		runID = latest
	}

	raw, err := s.client.rdb.Get(ctx, s.key(runID)).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, errors.NotFound("snapshot", runID)
	}
	if err != nil {
		return nil, errors.Storage("redis load snapshot", err)
	}

	var snap coordinator.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Storage("decode snapshot", err)
	}
	return &snap, nil
}
