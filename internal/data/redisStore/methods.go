package redisStore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

//list ops - the waiting/active/completed/failed queues are plain lists

func (s *Store) ListPush(ctx context.Context, key string, values ...interface{}) error {
	return s.client.LPush(ctx, key, values...).Err()
}

func (s *Store) ListMove(ctx context.Context, source string, destination string) (string, error) {
	return s.client.LMove(ctx, source, destination, "RIGHT", "LEFT").Result()
}

func (s *Store) ListRemove(ctx context.Context, key string, value interface{}) (int64, error) {
	return s.client.LRem(ctx, key, 0, value).Result()
}

func (s *Store) ListRange(ctx context.Context, key string, start int64, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *Store) ListTrim(ctx context.Context, key string, start int64, stop int64) error {
	return s.client.LTrim(ctx, key, start, stop).Err()
}

//sorted-set ops - the delayed queue keys job ids by their ready-at time

func (s *Store) SortedAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *Store) SortedDueMembers(ctx context.Context, key string, maxScore float64) ([]string, error) {
	return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(maxScore),
	}).Result()
}

func (s *Store) SortedAllMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.ZRange(ctx, key, 0, -1).Result()
}

func (s *Store) SortedRemove(ctx context.Context, key string, members ...interface{}) (int64, error) {
	return s.client.ZRem(ctx, key, members...).Result()
}

func (s *Store) SortedLen(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

//set ops - dataset/document membership indexes

func (s *Store) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.client.SAdd(ctx, key, members...).Err()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...interface{}) error {
	return s.client.SRem(ctx, key, members...).Err()
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
