package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/completion-gateway/internal/store"
	"github.com/nulzo/completion-gateway/pkg/api"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db *sqlx.DB
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{db: db}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) Catalog() store.CatalogRepository {
	return &catalogRepo{db: r.db}
}

type catalogRepo struct {
	db DB
}

type providerRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Status   string `db:"status"`
	Priority int    `db:"priority"`
	Enabled  bool   `db:"enabled"`
}

type modelRow struct {
	ProviderID      string  `db:"provider_id"`
	Name            string  `db:"name"`
	DisplayName     string  `db:"display_name"`
	MaxTokens       int     `db:"max_tokens"`
	Capabilities    string  `db:"capabilities"`
	Status          string  `db:"status"`
	InputCostPer1K  float64 `db:"input_cost_per_1k"`
	OutputCostPer1K float64 `db:"output_cost_per_1k"`
	Position        int     `db:"position"`
}

func (r *catalogRepo) ListProviders(ctx context.Context) ([]api.Provider, error) {
	var providerRows []providerRow
	if err := r.db.SelectContext(ctx, &providerRows,
		`SELECT id, name, status, priority, enabled FROM providers ORDER BY priority, id`); err != nil {
		return nil, err
	}

	var modelRows []modelRow
	if err := r.db.SelectContext(ctx, &modelRows,
		`SELECT provider_id, name, display_name, max_tokens, capabilities, status,
		        input_cost_per_1k, output_cost_per_1k, position
		 FROM models ORDER BY provider_id, position`); err != nil {
		return nil, err
	}

	modelsByProvider := make(map[string][]api.Model)
	for _, row := range modelRows {
		modelsByProvider[row.ProviderID] = append(modelsByProvider[row.ProviderID], api.Model{
			Name:            row.Name,
			DisplayName:     row.DisplayName,
			MaxTokens:       row.MaxTokens,
			Capabilities:    parseCapabilities(row.Capabilities),
			Status:          api.ModelStatus(row.Status),
			InputCostPer1K:  row.InputCostPer1K,
			OutputCostPer1K: row.OutputCostPer1K,
		})
	}

	providers := make([]api.Provider, 0, len(providerRows))
	for _, row := range providerRows {
		providers = append(providers, api.Provider{
			ID:       row.ID,
			Name:     row.Name,
			Status:   api.ProviderStatus(row.Status),
			Priority: row.Priority,
			Enabled:  row.Enabled,
			Models:   modelsByProvider[row.ID],
		})
	}
	return providers, nil
}

func (r *catalogRepo) RateLimitOverrides(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		ProviderID string `db:"provider_id"`
		RPM        int    `db:"rpm"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT provider_id, rpm FROM rate_limits`); err != nil {
		return nil, err
	}

	overrides := make(map[string]int, len(rows))
	for _, row := range rows {
		overrides[row.ProviderID] = row.RPM
	}
	return overrides, nil
}

func (r *catalogRepo) SyncProviders(ctx context.Context, providers []api.Provider) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM models`); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM providers`); err != nil {
		return err
	}

	for _, p := range providers {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO providers (id, name, status, priority, enabled) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, string(p.Status), p.Priority, p.Enabled); err != nil {
			return err
		}

		for i, m := range p.Models {
			if _, err := r.db.ExecContext(ctx,
				`INSERT INTO models (provider_id, name, display_name, max_tokens, capabilities, status,
				                     input_cost_per_1k, output_cost_per_1k, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, m.Name, m.DisplayName, m.MaxTokens, joinCapabilities(m.Capabilities),
				string(m.Status), m.InputCostPer1K, m.OutputCostPer1K, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *catalogRepo) SyncRateLimits(ctx context.Context, overrides map[string]int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rate_limits`); err != nil {
		return err
	}
	for providerID, rpm := range overrides {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO rate_limits (provider_id, rpm) VALUES (?, ?)`, providerID, rpm); err != nil {
			return err
		}
	}
	return nil
}

func parseCapabilities(raw string) []api.Capability {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	capabilities := make([]api.Capability, 0, len(parts))
	for _, part := range parts {
		capabilities = append(capabilities, api.Capability(strings.TrimSpace(part)))
	}
	return capabilities
}

func joinCapabilities(capabilities []api.Capability) string {
	parts := make([]string, len(capabilities))
	for i, c := range capabilities {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
