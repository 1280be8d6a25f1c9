package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/orderbot/pkg/domain"
)

// Catalog reads menu items from an `item` table.
type Catalog struct {
	db *sql.DB
}

// NewCatalog creates the item table if needed.
func NewCatalog(db *sql.DB) (*Catalog, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS item (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			price INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			discount REAL,
			category TEXT NOT NULL DEFAULT '',
			flavour TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return nil, fmt.Errorf("create item table: %w", err)
	}
	return &Catalog{db: db}, nil
}

const itemColumns = `id, title, price, discount, category, flavour`

// ListActiveItems implements ports.CatalogService.
func (c *Catalog) ListActiveItems(ctx context.Context) ([]domain.MenuItem, error) {
	return c.query(ctx, `SELECT `+itemColumns+` FROM item WHERE is_active = 1 ORDER BY id`)
}

// ListDiscountedItems implements ports.CatalogService.
func (c *Catalog) ListDiscountedItems(ctx context.Context) ([]domain.MenuItem, error) {
	return c.query(ctx, `SELECT `+itemColumns+` FROM item
		WHERE is_active = 1 AND discount IS NOT NULL AND discount > 0 ORDER BY id`)
}

// GetItemByID implements ports.CatalogService.
func (c *Catalog) GetItemByID(ctx context.Context, id int) (domain.MenuItem, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM item WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MenuItem{}, false, nil
	}
	if err != nil {
		return domain.MenuItem{}, false, err
	}
	return it, true, nil
}

// Upsert inserts or replaces items, storing list fields comma-separated.
func (c *Catalog) Upsert(ctx context.Context, items []domain.MenuItem) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item (id, title, price, is_active, discount, category, flavour)
			VALUES (?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				price = excluded.price,
				is_active = 1,
				discount = excluded.discount,
				category = excluded.category,
				flavour = excluded.flavour
		`, it.ID, it.Title, it.Price, it.Discount,
			strings.Join(it.Categories, ","), strings.Join(it.Flavours, ",")); err != nil {
			return fmt.Errorf("upsert item %d: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// SetActive toggles an item's availability.
func (c *Catalog) SetActive(ctx context.Context, id int, active bool) error {
	_, err := c.db.ExecContext(ctx, `UPDATE item SET is_active = ? WHERE id = ?`, active, id)
	return err
}

func (c *Catalog) query(ctx context.Context, q string) ([]domain.MenuItem, error) {
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.MenuItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.MenuItem, error) {
	var (
		it                 domain.MenuItem
		discount           sql.NullFloat64
		category, flavours string
	)
	if err := row.Scan(&it.ID, &it.Title, &it.Price, &discount, &category, &flavours); err != nil {
		return it, err
	}
	it.Discount = discount.Float64
	it.Categories = parseList(category)
	it.Flavours = parseList(flavours)
	return it.Normalize()
}

// parseList accepts "a,b" as well as the Postgres array literal "{a,b}".
func parseList(v string) []string {
	v = strings.Trim(strings.TrimSpace(v), "{}")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
