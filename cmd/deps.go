package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-advisor/internal/cache"
	"github.com/sells-group/portfolio-advisor/internal/config"
	"github.com/sells-group/portfolio-advisor/internal/matcher"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
	"github.com/sells-group/portfolio-advisor/internal/resilience"
	"github.com/sells-group/portfolio-advisor/internal/store"
	"github.com/sells-group/portfolio-advisor/internal/textmatch"
	"github.com/sells-group/portfolio-advisor/pkg/notion"
	"github.com/sells-group/portfolio-advisor/pkg/salesforce"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ModeStore); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newRanker builds a Ranker from the matching settings. workers overrides
// matching.workers when positive.
func newRanker(workers int, opts ...ranking.Option) *ranking.Ranker {
	tok := textmatch.NewWordTokenizer(
		textmatch.WithStopwords(cfg.Matching.Stopwords...),
		textmatch.WithMinLength(cfg.Matching.MinTermLength),
	)
	if workers <= 0 {
		workers = cfg.Matching.Workers
	}
	base := []ranking.Option{
		ranking.WithEngine(matcher.New(tok)),
		ranking.WithWorkers(workers),
	}
	return ranking.New(append(base, opts...)...)
}

func retryPolicy(name string) resilience.Policy {
	r := cfg.Retry
	return resilience.PolicyFromSettings(name, r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

func initNotion() (notion.Client, error) {
	if err := cfg.Validate(config.ModeNotion); err != nil {
		return nil, err
	}
	return notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit)), nil
}

func initSalesforce() (salesforce.Client, error) {
	if err := cfg.Validate(config.ModeSalesforce); err != nil {
		return nil, err
	}
	return salesforce.Connect(salesforce.Credentials{
		LoginURL: cfg.Salesforce.LoginURL,
		Username: cfg.Salesforce.Username,
		ClientID: cfg.Salesforce.ClientID,
		KeyPath:  cfg.Salesforce.KeyPath,
	}, salesforce.WithRateLimit(cfg.Salesforce.RateLimit))
}

// initCache connects to Redis when cache.redis_addr is set. A nil cache and
// nil close func mean caching is disabled.
func initCache(ctx context.Context, observer cache.Observer) (*cache.RankingCache, func() error, error) {
	if cfg.Cache.RedisAddr == "" {
		return nil, nil, nil
	}
	rdb, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	rc := cache.New(rdb, time.Duration(cfg.Cache.TTLSecs)*time.Second)
	if observer != nil {
		rc = rc.WithObserver(observer)
	}
	return rc, rdb.Close, nil
}
