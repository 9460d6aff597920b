package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
	"github.com/redis/go-redis/v9"
)

// redisLockTTL bounds how long a crashed holder keeps the lock.
const redisLockTTL = StaleLockAge

// redisBackend implements Backend on a single Redis key with a SETNX lock.
type redisBackend struct {
	client *redis.Client
	key    string
	lockID string
}

func newRedisBackend(config map[string]string) (Backend, error) {
	addr := config["address"]
	if addr == "" {
		return nil, fmt.Errorf("redis backend requires 'address' configuration")
	}

	db := 0
	if v := config["db"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("redis backend 'db' must be a number: %w", err)
		}
		db = n
	}

	key := config["key"]
	if key == "" {
		key = "postnome:settings"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config["password"],
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &redisBackend{client: client, key: key}, nil
}

func (b *redisBackend) lockKey() string { return b.key + ":lock" }

func (b *redisBackend) Read(ctx context.Context) (*ir.Document, error) {
	raw, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logging.Debug("remote settings not found, starting empty", "key", b.key)
			return ir.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read settings from redis key %s: %w", b.key, err)
	}

	content, err := DecryptState(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt remote settings: %w", err)
	}

	doc, err := Unmarshal(content, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote settings: %w", err)
	}
	return doc, nil
}

func (b *redisBackend) Write(ctx context.Context, doc *ir.Document) error {
	content, err := Marshal(doc, FormatJSON)
	if err != nil {
		return err
	}
	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt settings: %w", err)
	}
	if err := b.client.Set(ctx, b.key, encrypted, 0).Err(); err != nil {
		return fmt.Errorf("failed to write settings to redis key %s: %w", b.key, err)
	}
	return nil
}

func (b *redisBackend) Lock() error {
	b.lockID = fmt.Sprintf("postnome-%d-%d", os.Getpid(), time.Now().UnixNano())
	ok, err := b.client.SetNX(context.Background(), b.lockKey(), b.lockID, redisLockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w. If this is an error, delete the redis key %q", ErrLocked, b.lockKey())
	}
	return nil
}

func (b *redisBackend) Unlock() error {
	ctx := context.Background()
	holder, err := b.client.Get(ctx, b.lockKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if holder != b.lockID {
		return fmt.Errorf("lock %s is held by %s", b.lockKey(), holder)
	}
	if err := b.client.Del(ctx, b.lockKey()).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
