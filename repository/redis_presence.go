package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineKey   = "presence:online"
	presenceLastSeenKey = "presence:last_seen"
)

// RedisPresenceCache keeps an online set and a last-seen hash (unix millis).
type RedisPresenceCache struct {
	cli    *redis.Client
	prefix string
}

// ConnectRedisPresence connects to addr and pings the server to make sure the
// connection works. prefix namespaces the keys.
func ConnectRedisPresence(ctx context.Context, addr, password string, db int, prefix string) (*RedisPresenceCache, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPresenceCache{cli: cli, prefix: prefix}, nil
}

func (c *RedisPresenceCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisPresenceCache) SetOnline(ctx context.Context, userID string) error {
	if err := c.cli.SAdd(ctx, c.key(presenceOnlineKey), userID).Err(); err != nil {
		return fmt.Errorf("sadd online: %w", err)
	}
	return nil
}

func (c *RedisPresenceCache) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := c.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, c.key(presenceOnlineKey), userID)
		pipe.HSet(ctx, c.key(presenceLastSeenKey), userID, lastSeen.UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

func (c *RedisPresenceCache) OnlineUserIDs(ctx context.Context) ([]string, error) {
	ids, err := c.cli.SMembers(ctx, c.key(presenceOnlineKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers online: %w", err)
	}
	return ids, nil
}

func (c *RedisPresenceCache) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	v, err := c.cli.HGet(ctx, c.key(presenceLastSeenKey), userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("hget last seen: %w", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last seen %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (c *RedisPresenceCache) Reset(ctx context.Context) error {
	if err := c.cli.Del(ctx, c.key(presenceOnlineKey)).Err(); err != nil {
		return fmt.Errorf("del online: %w", err)
	}
	return nil
}

func (c *RedisPresenceCache) Close() error {
	return c.cli.Close()
}
