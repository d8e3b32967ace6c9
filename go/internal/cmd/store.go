package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/config"
	"github.com/mcdev12/roomboard/go/internal/dbconfig"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/store/natskv"
	"github.com/mcdev12/roomboard/go/internal/store/pgstore"
	"github.com/mcdev12/roomboard/go/internal/store/redisstore"
	"github.com/rs/zerolog/log"
)

// setupStore opens the configured backend behind a DocumentStore
func setupStore(ctx context.Context, cfg config.Config) (*store.DocumentStore, error) {
	var backend store.Backend

	switch cfg.Store.Backend {
	case config.BackendRedis:
		redisCfg := redisstore.DefaultConfig()
		redisCfg.Addr = cfg.Store.RedisAddr
		redisCfg.Password = cfg.Store.RedisPassword
		redisCfg.DB = cfg.Store.RedisDB
		redisCfg.KeyPrefix = cfg.Store.RedisPrefix
		b, err := redisstore.New(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		backend = b

	case config.BackendNATS:
		natsCfg := natskv.DefaultConfig()
		natsCfg.URL = cfg.Store.NATSURL
		natsCfg.Bucket = cfg.Store.NATSBucket
		b, err := natskv.New(ctx, natsCfg)
		if err != nil {
			return nil, err
		}
		backend = b

	case config.BackendPostgres:
		dbCfg := dbconfig.NewConfigFromEnv()
		db, err := dbCfg.Open(ctx)
		if err != nil {
			return nil, err
		}
		pgCfg := pgstore.DefaultConfig()
		pgCfg.DatabaseURL = dbCfg.DSN()
		b, err := pgstore.New(db, pgCfg)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := b.EnsureSchema(ctx); err != nil {
			b.Close()
			db.Close()
			return nil, err
		}
		backend = closeBoth{Backend: b, also: db.Close}

	case config.BackendMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		backend = store.NewMemoryBackend()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return store.NewDocumentStore(backend), nil
}

// closeBoth closes the backend, then the connection pool under it
type closeBoth struct {
	store.Backend
	also func() error
}

func (c closeBoth) Close() error {
	err := c.Backend.Close()
	if err2 := c.also(); err == nil {
		err = err2
	}
	return err
}
