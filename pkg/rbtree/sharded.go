package rbtree

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// ErrHibernateShards is returned when at least one shard fails to hibernate.
var ErrHibernateShards = errors.New("failed to hibernate shards")

// ErrBootShards is returned when at least one shard fails to boot.
var ErrBootShards = errors.New("failed to boot shards")

// minHibernationThreshold is the minimal reasonable default if division results in 0.
const minHibernationThreshold = 1000

// ShardedArena manages multiple Arenas so that independent trees keyed by
// name do not contend for one node slice.
type ShardedArena[T any] struct {
	shards []*Arena[T]
}

// NewShardedArena creates a new ShardedArena with shardCount shards.
func NewShardedArena[T any](shardCount, hibernationThreshold int) *ShardedArena[T] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*Arena[T], shardCount)

	for idx := range shardCount {
		shards[idx] = NewArena[T]()

		if hibernationThreshold > 0 {
			shards[idx].HibernationThreshold = hibernationThreshold / shardCount
			if shards[idx].HibernationThreshold == 0 {
				shards[idx].HibernationThreshold = minHibernationThreshold
			}
		}
	}

	return &ShardedArena[T]{shards: shards}
}

// Shard returns the arena shard for the given key.
func (sa *ShardedArena[T]) Shard(key string) *Arena[T] {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))

	return sa.shards[hasher.Sum32()%uint32(len(sa.shards))]
}

// Shards returns all underlying arenas.
func (sa *ShardedArena[T]) Shards() []*Arena[T] {
	return sa.shards
}

// Used returns the number of live nodes across all shards.
func (sa *ShardedArena[T]) Used() int {
	total := 0

	for _, shard := range sa.shards {
		if !shard.Hibernated() {
			total += shard.Used()
		}
	}

	return total
}

// Hibernate hibernates all shards in parallel, ignoring their thresholds.
func (sa *ShardedArena[T]) Hibernate(packer Packer[T]) error {
	return sa.fanOut(ErrHibernateShards, func(arena *Arena[T]) error {
		if arena.Hibernated() {
			return nil
		}

		// Force hibernation even if below threshold by temporarily setting threshold to 0.
		originalThreshold := arena.HibernationThreshold
		arena.HibernationThreshold = 0
		err := arena.Hibernate(packer)
		arena.HibernationThreshold = originalThreshold

		return err
	})
}

// Boot boots all shards in parallel.
func (sa *ShardedArena[T]) Boot(packer Packer[T]) error {
	return sa.fanOut(ErrBootShards, func(arena *Arena[T]) error {
		return arena.Boot(packer)
	})
}

func (sa *ShardedArena[T]) fanOut(sentinel error, fn func(*Arena[T]) error) error {
	var errs []error

	var mu sync.Mutex

	wg := sync.WaitGroup{}
	wg.Add(len(sa.shards))

	for idx, shard := range sa.shards {
		go func(shardIdx int, arena *Arena[T]) {
			defer wg.Done()

			err := fn(arena)
			if err != nil {
				mu.Lock()

				errs = append(errs, fmt.Errorf("shard %d: %w", shardIdx, err))

				mu.Unlock()
			}
		}(idx, shard)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", sentinel, errors.Join(errs...))
	}

	return nil
}
