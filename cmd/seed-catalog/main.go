// Command seed-catalog loads a catalog dump (products, categories, offers,
// currencies, and per-user business configuration) into the database. The
// dump is a single JSON document, optionally gzip-compressed; point it at an
// empty database and the command migrates first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tillcraft/pos/internal/repository"
)

type catalogDump struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
	Offers     []offerJSON    `json:"offers"`
	Currencies []currencyJSON `json:"currencies"`
	Config     *configJSON    `json:"business_config"`
}

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
}

type offerJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Kind         string          `json:"kind"`
	DiscountKind string          `json:"discount_kind"`
	Value        decimal.Decimal `json:"value"`
	MinPurchase  decimal.Decimal `json:"min_purchase"`
	Products     []string        `json:"products"`
	ValidUntil   *time.Time      `json:"valid_until"`
	Combo        json.RawMessage `json:"combo"`
	Active       bool            `json:"active"`
}

type currencyJSON struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}

type configJSON struct {
	TaxRatePercent      decimal.Decimal `json:"tax_rate_percent"`
	DefaultCurrencyCode string          `json:"default_currency_code"`
	UPIID               string          `json:"upi_id"`
	BankDetails         string          `json:"bank_details"`
	EnabledProviders    []string        `json:"enabled_providers"`
	Active              bool            `json:"active"`
}

const (
	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertProductSQL = `INSERT INTO products (id, name, category_id, price, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category_id = EXCLUDED.category_id,
			price = EXCLUDED.price, image_url = EXCLUDED.image_url`

	upsertOfferSQL = `INSERT INTO offers
			(id, name, description, kind, discount_kind, discount_value,
			 min_purchase, products, valid_until, combo, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			kind = EXCLUDED.kind, discount_kind = EXCLUDED.discount_kind,
			discount_value = EXCLUDED.discount_value,
			min_purchase = EXCLUDED.min_purchase, products = EXCLUDED.products,
			valid_until = EXCLUDED.valid_until, combo = EXCLUDED.combo,
			active = EXCLUDED.active`

	upsertCurrencySQL = `INSERT INTO currencies (code, name, symbol, rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, symbol = EXCLUDED.symbol, rate = EXCLUDED.rate`

	upsertConfigSQL = `INSERT INTO business_config
			(user_id, tax_rate_percent, default_currency_code, upi_id, bank_details, enabled_providers, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			tax_rate_percent = EXCLUDED.tax_rate_percent,
			default_currency_code = EXCLUDED.default_currency_code,
			upi_id = EXCLUDED.upi_id, bank_details = EXCLUDED.bank_details,
			enabled_providers = EXCLUDED.enabled_providers, active = EXCLUDED.active`
)

func main() {
	var (
		databaseURL string
		catalogFile string
		userID      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json.gz", "path to catalog dump (.json or .json.gz)")
	flag.StringVar(&userID, "user-id", "default", "business account the config section applies to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, userID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, userID string) error {
	dump, err := readDump(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog dump")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Categories land first so product category references resolve on read;
	// everything else is independent and loads concurrently.
	if err := seedCategories(ctx, pool, dump.Categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seedProducts(gctx, pool, dump.Products) })
	g.Go(func() error { return seedOffers(gctx, pool, dump.Offers) })
	g.Go(func() error { return seedCurrencies(gctx, pool, dump.Currencies) })
	g.Go(func() error { return seedConfig(gctx, pool, userID, dump.Config) })
	return g.Wait()
}

// readDump parses the dump file, transparently decompressing .gz files.
func readDump(path string) (*catalogDump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var dump catalogDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &dump, nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool, categories []categoryJSON) error {
	slog.Info("upserting categories", slog.Int("count", len(categories)))

	for _, c := range categories {
		if _, err := pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Category, p.Price, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	return nil
}

func seedOffers(ctx context.Context, pool *pgxpool.Pool, offers []offerJSON) error {
	slog.Info("upserting offers", slog.Int("count", len(offers)))

	for _, o := range offers {
		combo := o.Combo
		if len(combo) == 0 {
			combo = json.RawMessage("null")
		}
		if _, err := pool.Exec(ctx, upsertOfferSQL,
			o.ID, o.Name, o.Description, o.Kind, o.DiscountKind, o.Value,
			o.MinPurchase, o.Products, o.ValidUntil, combo, o.Active,
		); err != nil {
			return errors.Wrapf(err, "upsert offer %s", o.ID)
		}
	}
	return nil
}

func seedCurrencies(ctx context.Context, pool *pgxpool.Pool, currencies []currencyJSON) error {
	slog.Info("upserting currencies", slog.Int("count", len(currencies)))

	for _, c := range currencies {
		if _, err := pool.Exec(ctx, upsertCurrencySQL, c.Code, c.Name, c.Symbol, c.Rate); err != nil {
			return errors.Wrapf(err, "upsert currency %s", c.Code)
		}
	}
	return nil
}

func seedConfig(ctx context.Context, pool *pgxpool.Pool, userID string, cfg *configJSON) error {
	if cfg == nil {
		return nil
	}

	slog.Info("upserting business config", slog.String("user", userID))

	_, err := pool.Exec(ctx, upsertConfigSQL,
		userID, cfg.TaxRatePercent, cfg.DefaultCurrencyCode,
		cfg.UPIID, cfg.BankDetails, cfg.EnabledProviders, cfg.Active,
	)
	return errors.Wrapf(err, "upsert config for %s", userID)
}
