package cache

import (
	"context"
	"encoding/json"
	"time"

	dom "github.com/Torqued-codes/App/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyList = "tasks:list"
	keyGen  = "tasks:list:gen"
)

// TaskCache caches the task list in Redis.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// GetList returns the cached list, or nil on a miss.
func (c *TaskCache) GetList(ctx context.Context) ([]dom.Task, error) {
	b, err := c.rdb.Get(ctx, keyList).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.Task{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Generation returns the write counter bumped by Invalidate. Read it before
// loading the list from storage and hand it back to SetList.
func (c *TaskCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyGen).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// SetList stores the list unless a write invalidated the cache after gen was
// read. A skipped store is not an error.
func (c *TaskCache) SetList(ctx context.Context, gen int64, list []dom.Task) error {
	if list == nil {
		list = []dom.Task{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, keyGen).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyList, b, c.ttl)
			return nil
		})
		return err
	}, keyGen)
	if err == redis.TxFailedErr {
		return nil
	}
	return err
}

// Invalidate bumps the generation and drops the cached list. Called after every write.
func (c *TaskCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyGen)
		pipe.Del(ctx, keyList)
		return nil
	})
	return err
}
