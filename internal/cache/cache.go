// Package cache memoizes ranking results in Redis, keyed by a digest of the
// catalog, the insight set and the signal filter.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
)

// DefaultTTL bounds how long a ranking result is served from cache.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "advisor:rank:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: ping redis at %s", opts.Addr)
	}
	return rdb, nil
}

// Observer is told whether each lookup hit.
type Observer interface {
	ObserveCache(hit bool)
}

// RankingCache stores ranking.Result values as JSON.
type RankingCache struct {
	client   redis.Cmdable
	ttl      time.Duration
	observer Observer
}

// New wraps a Redis client. A non-positive ttl uses DefaultTTL.
func New(client redis.Cmdable, ttl time.Duration) *RankingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RankingCache{client: client, ttl: ttl}
}

// WithObserver attaches an Observer and returns c.
func (c *RankingCache) WithObserver(o Observer) *RankingCache {
	c.observer = o
	return c
}

// Key derives the cache key for one ranking request. Equal inputs always
// produce equal keys; any change to an offering or signal changes the key.
func Key(catalog []model.Offering, insights model.ClientInsightSet, signal string) (string, error) {
	payload := struct {
		Catalog []model.Offering `json:"catalog"`
		Client  string           `json:"client"`
		Signals []model.Signal   `json:"signals"`
		Signal  string           `json:"signal"`
	}{catalog, insights.ClientName, insights.Signals, signal}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "cache: encode key")
	}
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached result for key. The bool is false on a miss.
func (c *RankingCache) Get(ctx context.Context, key string) (ranking.Result, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ranking.Result{}, false, nil
	}
	if err != nil {
		return ranking.Result{}, false, eris.Wrap(err, "cache: get")
	}
	var res ranking.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return ranking.Result{}, false, eris.Wrap(err, "cache: decode result")
	}
	return res, true, nil
}

// Set stores a result under key for the cache TTL.
func (c *RankingCache) Set(ctx context.Context, key string, res ranking.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "cache: encode result")
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: set")
	}
	return nil
}

// Rank serves a ranking from cache or computes and stores it with rank.
// Cache failures are logged and never fail the request.
func (c *RankingCache) Rank(ctx context.Context, key string, rank func() ranking.Result) ranking.Result {
	if res, ok, err := c.Get(ctx, key); err != nil {
		zap.L().Warn("cache: read failed, ranking without cache", zap.Error(err))
	} else if ok {
		zap.L().Debug("cache: hit", zap.String("key", key))
		c.observe(true)
		return res
	}
	c.observe(false)

	res := rank()
	if err := c.Set(ctx, key, res); err != nil {
		zap.L().Warn("cache: write failed", zap.Error(err))
	}
	return res
}

func (c *RankingCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}
