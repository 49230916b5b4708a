package scoreboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/beka-birhanu/vinom-treasure/service/i"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var _ i.Scoreboard = &RedisScoreboard{}

// RedisScoreboard keeps live scores in a Redis sorted set with TTL support.
type RedisScoreboard struct {
	client *redis.Client
	locker *redsync.Redsync
	key    string
	ttl    time.Duration
}

// Key returns the sorted-set key of a server instance.
func Key(instance string) string {
	return fmt.Sprintf("treasure:%s:scores", instance)
}

// NewRedisScoreboard initializes a scoreboard for the given server instance.
func NewRedisScoreboard(client *redis.Client, instance string, ttl time.Duration) *RedisScoreboard {
	return &RedisScoreboard{
		client: client,
		locker: redsync.New(goredis.NewPool(client)),
		key:    Key(instance),
		ttl:    ttl,
	}
}

// Record sets the player's score and sets expiration if necessary.
func (s *RedisScoreboard) Record(ctx context.Context, id game.PlayerID, score int) error {
	_, err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(score), Member: member(id)}).Result()
	if err != nil {
		return err
	}

	if s.ttl <= 0 {
		return nil
	}
	// Set expiration only if it's not already set
	ttl, err := s.client.TTL(ctx, s.key).Result()
	if err == nil && ttl == -1 {
		_ = s.client.Expire(ctx, s.key, s.ttl).Err()
	}
	return nil
}

// Remove deletes the player from the board.
func (s *RedisScoreboard) Remove(ctx context.Context, id game.PlayerID) error {
	return s.client.ZRem(ctx, s.key, member(id)).Err()
}

// Top returns up to n entries with the highest scores. n <= 0 returns every entry.
func (s *RedisScoreboard) Top(ctx context.Context, n int) ([]i.ScoreEntry, error) {
	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}

	zs, err := s.client.ZRevRangeWithScores(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]i.ScoreEntry, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		entries = append(entries, i.ScoreEntry{PlayerID: game.PlayerID(id), Score: int(z.Score)})
	}
	return entries, nil
}

// Reset clears the board. Servers sharing a Redis serialize their resets on a lock.
func (s *RedisScoreboard) Reset(ctx context.Context) error {
	mutex := s.locker.NewMutex(s.key + ":reset_lock")
	if err := mutex.LockContext(ctx); err != nil {
		return err
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	return s.client.Del(ctx, s.key).Err()
}

func member(id game.PlayerID) string {
	return strconv.Itoa(int(id))
}
