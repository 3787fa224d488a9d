package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const connectRetries = 5

// Store persists per tick cell snapshots of a run
type Store interface {
	AddCellSnapshot(ctx context.Context, snapshotID string, snap *cell.Snapshot) error
	GetCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error)
	DeleteCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error)
	ListTicks(ctx context.Context, snapshotID, cellID string) ([]uint64, error)
}

// SnapshotKey is the key of a cell snapshot: <snapshotId>-<cellId>-<tick>
func SnapshotKey(snapshotID, cellID string, tick uint64) string {
	return cellPrefix(snapshotID, cellID) + strconv.FormatUint(tick, 10)
}

func cellPrefix(snapshotID, cellID string) string {
	return snapshotID + "-" + cellID + "-"
}

// RedisStore keeps snapshots in a redis database
type RedisStore struct {
	CellDB *goredis.Client
}

// InitClient connects to redis and waits until it answers a ping
func InitClient(ctx context.Context, redisHost, redisPort, db, username, password string) (*goredis.Client, error) {
	database, err := strconv.Atoi(db)
	if err != nil {
		return nil, errors.NewInvalid("invalid redis database %q: %v", db, err)
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Username: username,
		Password: password,
		DB:       database,
	})

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), ctx)
	err = backoff.RetryNotify(func() error {
		return client.Ping(ctx).Err()
	}, policy, func(err error, wait time.Duration) {
		log.Warnf("Redis at %s:%s not ready, retrying in %v: %v", redisHost, redisPort, wait, err)
	})
	if err != nil {
		_ = client.Close()
		return nil, errors.NewUnavailable("redis at %s:%s unreachable: %v", redisHost, redisPort, err)
	}
	log.Infof("Connected to redis at %s:%s db %d", redisHost, redisPort, database)
	return client, nil
}

// NewRedisStore wraps an initialized client
func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{CellDB: client}
}

func (s *RedisStore) AddCellSnapshot(ctx context.Context, snapshotID string, snap *cell.Snapshot) error {
	if snap == nil {
		return errors.NewInvalid("nil snapshot")
	}
	snapBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot of cell %s: %w", snap.CellID, err)
	}
	return s.CellDB.Set(ctx, SnapshotKey(snapshotID, snap.CellID, snap.Tick), snapBytes, time.Duration(0)).Err()
}

func (s *RedisStore) GetCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error) {
	key := SnapshotKey(snapshotID, cellID, tick)
	snapBytes, err := s.CellDB.Get(ctx, key).Bytes()
	if err == goredis.Nil || (err == nil && len(snapBytes) == 0) {
		return nil, errors.NewNotFound("snapshot %s does not exist", key)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching snapshot %s: %w", key, err)
	}
	return decodeSnapshot(key, snapBytes)
}

func (s *RedisStore) DeleteCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error) {
	snap, err := s.GetCellSnapshot(ctx, snapshotID, cellID, tick)
	if err != nil {
		return nil, err
	}
	err = s.CellDB.Del(ctx, SnapshotKey(snapshotID, cellID, tick)).Err()
	return snap, err
}

func (s *RedisStore) ListTicks(ctx context.Context, snapshotID, cellID string) ([]uint64, error) {
	prefix := cellPrefix(snapshotID, cellID)
	var keys []string
	iter := s.CellDB.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning %s*: %w", prefix, err)
	}
	return ticksOf(prefix, keys), nil
}

func decodeSnapshot(key string, snapBytes []byte) (*cell.Snapshot, error) {
	snap := &cell.Snapshot{}
	if err := json.Unmarshal(snapBytes, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", key, err)
	}
	return snap, nil
}

// ticksOf extracts the sorted ticks of the keys that belong to prefix
func ticksOf(prefix string, keys []string) []uint64 {
	ticks := make([]uint64, 0, len(keys))
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		tick, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			// another cell whose id extends this one
			continue
		}
		ticks = append(ticks, tick)
	}
	slices.Sort(ticks)
	return ticks
}
