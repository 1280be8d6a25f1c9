package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/orderbot/internal/config"
	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/adapters/file"
	natsadapter "github.com/aretw0/orderbot/pkg/adapters/nats"
	"github.com/aretw0/orderbot/pkg/adapters/sqlite"
	"github.com/aretw0/orderbot/pkg/ports"
)

func (r *resources) openCatalog(cfg *config.Config) (ports.CatalogService, error) {
	switch cfg.Catalog {
	case config.CatalogFile:
		c, err := file.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("error loading catalog: %w", err)
		}
		return c, nil
	case config.CatalogSQLite:
		return r.sqliteCatalog(cfg.Store.SQLitePath)
	case config.CatalogNATS:
		conn, err := r.nats(cfg)
		if err != nil {
			return nil, err
		}
		return natsadapter.NewCatalogClient(conn, cfg.NATSTimeout), nil
	default:
		return nil, fmt.Errorf("unknown catalog %q", cfg.Catalog)
	}
}

func (r *resources) sqliteCatalog(path string) (*sqlite.Catalog, error) {
	db, err := r.sqlite(path)
	if err != nil {
		return nil, err
	}
	c, err := sqlite.NewCatalog(db)
	if err != nil {
		return nil, fmt.Errorf("error initializing sqlite catalog: %w", err)
	}
	return c, nil
}

// ImportCatalog copies the active items of a YAML menu into the SQLite
// catalog at cfg.Store.SQLitePath and returns how many were written.
func ImportCatalog(ctx context.Context, cfg *config.Config, yamlPath string) (int, error) {
	src, err := file.LoadCatalog(yamlPath)
	if err != nil {
		return 0, err
	}
	items, err := src.ListActiveItems(ctx)
	if err != nil {
		return 0, err
	}

	res := &resources{logger: logging.NewNop()}
	defer func() { _ = res.close() }()
	dst, err := res.sqliteCatalog(cfg.Store.SQLitePath)
	if err != nil {
		return 0, err
	}
	if err := dst.Upsert(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// SetItemActive toggles an item in the SQLite catalog.
func SetItemActive(ctx context.Context, cfg *config.Config, id int, active bool) error {
	res := &resources{logger: logging.NewNop()}
	defer func() { _ = res.close() }()
	c, err := res.sqliteCatalog(cfg.Store.SQLitePath)
	if err != nil {
		return err
	}
	return c.SetActive(ctx, id, active)
}

// ServeCatalog answers catalog requests on NATS from the local catalog
// until ctx is done.
func ServeCatalog(ctx context.Context, cfg *config.Config, source string) error {
	if source == config.CatalogNATS {
		return fmt.Errorf("catalog responder cannot serve from %q", source)
	}
	res := &resources{logger: NewLogger(cfg)}
	defer func() { _ = res.close() }()

	local := *cfg
	local.Catalog = source
	catalog, err := res.openCatalog(&local)
	if err != nil {
		return err
	}
	conn, err := res.nats(cfg)
	if err != nil {
		return err
	}

	responder := natsadapter.NewResponder(conn, catalog, natsadapter.WithLogger(res.logger))
	if err := responder.Start(); err != nil {
		return err
	}
	res.logger.Info("catalog responder started", "url", cfg.NATSURL, "source", source)
	<-ctx.Done()
	return responder.Close()
}
