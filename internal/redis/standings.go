package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/standings"
)

// StandingsCache caches computed standings per game state version. A bump of
// the version makes older entries unreachable, so the database stays the only
// source of truth.
type StandingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStandingsCache creates a new Redis standings cache
func NewStandingsCache(cfg *config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*StandingsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStandingsCacheWithClient(client, ttl, logger), nil
}

// NewStandingsCacheWithClient wraps an existing client
func NewStandingsCacheWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StandingsCache {
	return &StandingsCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *StandingsCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *StandingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func pointsKey(version int64) string {
	return fmt.Sprintf("hitster:standings:%d:points", version)
}

func namesKey(version int64) string {
	return fmt.Sprintf("hitster:standings:%d:names", version)
}

func deltasKey(version int64) string {
	return fmt.Sprintf("hitster:standings:%d:deltas", version)
}

// readyKey is written last so a reader never sees a partial entry
func readyKey(version int64) string {
	return fmt.Sprintf("hitster:standings:%d:ready", version)
}

// Get returns the cached standings for version. ok is false on a miss.
func (c *StandingsCache) Get(ctx context.Context, version int64) (rows []domain.Standing, ok bool, err error) {
	pipe := c.client.Pipeline()
	readyCmd := pipe.Exists(ctx, readyKey(version))
	pointsCmd := pipe.ZRangeWithScores(ctx, pointsKey(version), 0, -1)
	namesCmd := pipe.HGetAll(ctx, namesKey(version))
	deltasCmd := pipe.HGetAll(ctx, deltasKey(version))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("reading cached standings: %w", err)
	}

	if readyCmd.Val() == 0 {
		return nil, false, nil
	}

	names := namesCmd.Val()
	totals := make([]domain.PlayerTotal, 0, len(pointsCmd.Val()))
	for _, z := range pointsCmd.Val() {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parsing cached player id %q: %w", member, err)
		}
		totals = append(totals, domain.PlayerTotal{
			PlayerID:   id,
			PlayerName: names[member],
			Points:     int(z.Score),
		})
	}

	deltas := make(map[int64]int, len(deltasCmd.Val()))
	for member, v := range deltasCmd.Val() {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		d, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		deltas[id] = d
	}

	rows = standings.Rank(totals)
	standings.ApplyDeltas(rows, deltas)
	return rows, true, nil
}

// Set stores rows for version with the configured TTL
func (c *StandingsCache) Set(ctx context.Context, version int64, rows []domain.Standing) error {
	pk, nk, dk, rk := pointsKey(version), namesKey(version), deltasKey(version), readyKey(version)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pk, nk, dk)
		if len(rows) > 0 {
			members := make([]redis.Z, len(rows))
			names := make(map[string]interface{}, len(rows))
			deltas := make(map[string]interface{}, len(rows))
			for i, row := range rows {
				member := strconv.FormatInt(row.PlayerID, 10)
				members[i] = redis.Z{Score: float64(row.Points), Member: member}
				names[member] = row.PlayerName
				deltas[member] = row.Delta
			}
			pipe.ZAdd(ctx, pk, members...)
			pipe.HSet(ctx, nk, names)
			pipe.HSet(ctx, dk, deltas)
			pipe.Expire(ctx, pk, c.ttl)
			pipe.Expire(ctx, nk, c.ttl)
			pipe.Expire(ctx, dk, c.ttl)
		}
		pipe.Set(ctx, rk, "1", c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("caching standings: %w", err)
	}

	c.logger.Debug("cached standings", "version", version, "players", len(rows))
	return nil
}
