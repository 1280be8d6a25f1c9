package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/orderbot/internal/config"
	"github.com/aretw0/orderbot/pkg/adapters/file"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/adapters/redis"
	"github.com/aretw0/orderbot/pkg/adapters/sqlite"
	"github.com/aretw0/orderbot/pkg/persistence/middleware"
	"github.com/aretw0/orderbot/pkg/ports"
)

// lockPrefix namespaces the distributed session locks.
const lockPrefix = "orderbot:lock:"

// openStore builds the checkpoint store for cfg. The locker is only set for
// backends shared between replicas.
func (r *resources) openStore(cfg config.StoreConfig, observer middleware.CheckpointObserver) (ports.CheckpointStore, ports.DistributedLocker, error) {
	var (
		base   ports.CheckpointStore
		locker ports.DistributedLocker
	)

	switch cfg.Backend {
	case config.StoreMemory:
		base = memory.NewStore()
	case config.StoreFile:
		base = file.New(cfg.Dir)
	case config.StoreSQLite:
		db, err := r.sqlite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing sqlite store: %w", err)
		}
		base = store
	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.SessionTTL))
		r.onClose(store.Close)
		base = store
		locker = redis.NewLocker(store.Client(), lockPrefix)
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Backend)
	}

	mws := []middleware.Middleware{middleware.NewInstrumentedMiddleware(observer)}
	if cfg.EncryptionKey != "" {
		key, err := decodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	r.logger.Debug("checkpoint store ready", "backend", cfg.Backend, "encrypted", cfg.EncryptionKey != "")
	return middleware.Chain(base, mws...), locker, nil
}

// sqlite opens path once, however many components use it.
func (r *resources) sqlite(path string) (*sql.DB, error) {
	if db, ok := r.dbs[path]; ok {
		return db, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if r.dbs == nil {
		r.dbs = make(map[string]*sql.DB)
	}
	r.dbs[path] = db
	r.onClose(db.Close)
	return db, nil
}
