// Package store persists the service catalog in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/af-corp/ai-gateway/internal/types"
)

// PostgresStore reads and writes the ai_services table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load returns every stored service ordered by id. Loaded services carry no
// credential.
func (s *PostgresStore) Load(ctx context.Context) ([]types.ServiceConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, provider, capability, endpoint, model,
		       parameters, enabled, priority, timeout_ms, max_retries,
		       COALESCE(fallback_service_id, '')
		FROM ai_services
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []types.ServiceConfig
	for rows.Next() {
		cfg, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return out, nil
}

func scanService(row pgx.Row) (types.ServiceConfig, error) {
	var (
		cfg        types.ServiceConfig
		provider   string
		capability string
		params     []byte
		timeoutMs  int64
	)
	err := row.Scan(
		&cfg.ID, &cfg.Name, &provider, &capability, &cfg.Endpoint, &cfg.Model,
		&params, &cfg.Enabled, &cfg.Priority, &timeoutMs, &cfg.MaxRetries, &cfg.FallbackServiceID,
	)
	if err != nil {
		return types.ServiceConfig{}, fmt.Errorf("scan service: %w", err)
	}
	cfg.Provider = types.ProviderKind(provider)
	cfg.Capability = types.Capability(capability)
	cfg.Timeout = time.Duration(timeoutMs) * time.Millisecond
	if cfg.Parameters, err = decodeParameters(params); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("service %s: %w", cfg.ID, err)
	}
	return cfg, nil
}

// Save inserts or replaces a service. The credential is never written;
// credentials come from the environment and config files on every start.
func (s *PostgresStore) Save(ctx context.Context, cfg types.ServiceConfig) error {
	args, err := saveArgs(cfg)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO ai_services (id, name, provider, capability, endpoint, model,
		                         parameters, enabled, priority, timeout_ms, max_retries, fallback_service_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			capability = EXCLUDED.capability,
			endpoint = EXCLUDED.endpoint,
			model = EXCLUDED.model,
			parameters = EXCLUDED.parameters,
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			timeout_ms = EXCLUDED.timeout_ms,
			max_retries = EXCLUDED.max_retries,
			fallback_service_id = EXCLUDED.fallback_service_id,
			updated_at = NOW()
	`, args...)
	if err != nil {
		return fmt.Errorf("save service %s: %w", cfg.ID, err)
	}
	return nil
}

// saveArgs returns the Save query arguments in column order.
func saveArgs(cfg types.ServiceConfig) ([]any, error) {
	params, err := encodeParameters(cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", cfg.ID, err)
	}
	var fallback *string
	if cfg.FallbackServiceID != "" {
		fallback = &cfg.FallbackServiceID
	}
	return []any{
		cfg.ID, cfg.Name, string(cfg.Provider), string(cfg.Capability), cfg.Endpoint, cfg.Model,
		params, cfg.Enabled, cfg.Priority, cfg.Timeout.Milliseconds(), cfg.MaxRetries, fallback,
	}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM ai_services WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete service %s: %w", id, err)
	}
	return nil
}

func encodeParameters(p map[string]any) ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return b, nil
}

func decodeParameters(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if len(p) == 0 {
		return nil, nil
	}
	return p, nil
}
