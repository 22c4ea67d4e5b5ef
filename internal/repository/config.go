package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/currency"
)

const (
	getBusinessConfigSQL = `SELECT tax_rate_percent, default_currency_code, upi_id,
			bank_details, enabled_providers, active
		FROM business_config WHERE user_id = $1`

	getUserActiveSQL = `SELECT active FROM business_config WHERE user_id = $1`

	listCurrenciesSQL = `SELECT code, name, symbol, rate FROM currencies ORDER BY code`
)

// BusinessConfig is the per-user business configuration the engine reads at
// startup and on configuration pushes.
type BusinessConfig struct {
	TaxRatePercent      decimal.Decimal
	DefaultCurrencyCode string
	UPIID               string
	BankDetails         string
	EnabledProviders    []string
	Active              bool
}

// ConfigRepository reads business configuration and the currency table.
type ConfigRepository struct {
	pool *pgxpool.Pool
}

// NewConfigRepository returns a ConfigRepository that uses the given pool.
func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// GetBusinessConfig returns the configuration for the user. A missing row
// yields usable defaults (zero tax, account active) so a fresh account can
// sell immediately.
func (r *ConfigRepository) GetBusinessConfig(ctx context.Context, userID string) (*BusinessConfig, error) {
	var cfg BusinessConfig
	err := r.pool.QueryRow(ctx, getBusinessConfigSQL, userID).Scan(
		&cfg.TaxRatePercent, &cfg.DefaultCurrencyCode, &cfg.UPIID,
		&cfg.BankDetails, &cfg.EnabledProviders, &cfg.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &BusinessConfig{Active: true}, nil
		}
		return nil, fmt.Errorf("reading business config: %w", err)
	}
	return &cfg, nil
}

// IsUserActive reads the account-enabled flag. Unknown users are active;
// disabling is an explicit act of the auth collaborator.
func (r *ConfigRepository) IsUserActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, getUserActiveSQL, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("reading user active flag: %w", err)
	}
	return active, nil
}

// ListCurrencies returns the stored currency table, or the built-in default
// entries when the table is empty.
func (r *ConfigRepository) ListCurrencies(ctx context.Context) ([]currency.Currency, error) {
	rows, err := r.pool.Query(ctx, listCurrenciesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing currencies: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (currency.Currency, error) {
		var (
			c    currency.Currency
			rate decimal.Decimal
		)
		err := row.Scan(&c.Code, &c.Name, &c.Symbol, &rate)
		c.Rate = rate
		return c, err
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return currency.DefaultEntries(), nil
	}
	return entries, nil
}
