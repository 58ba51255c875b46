package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bwcc-clan/polebot-go/internal/model"
	"github.com/bwcc-clan/polebot-go/internal/orchestrator"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-index conflict.
const uniqueViolation = "23505"

// ServerRepository implements orchestrator.ServerRepository on Postgres via
// pgx. It is the only package that knows managed servers live in a
// `managed_servers` table.
type ServerRepository struct {
	pool *pgxpool.Pool
}

// NewServerRepository builds a ServerRepository over an existing pool.
func NewServerRepository(pool *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{pool: pool}
}

var _ orchestrator.ServerRepository = (*ServerRepository)(nil)

// id is cast to text so it always scans into ManagedServer.ID (a plain
// string) regardless of pgx's default uuid decoding.
const serverColumns = `id::text, guild_id, label, api_url, api_key, rcon_headers_json,
	weighting_params_json, votemap_enabled, created_at, updated_at`

func scanServer(row pgx.Row) (orchestrator.ManagedServer, error) {
	var s orchestrator.ManagedServer
	var headersJSON []byte
	var weightingJSON []byte
	if err := row.Scan(
		&s.ID, &s.GuildID, &s.Label, &s.APIURL, &s.APIKey, &headersJSON,
		&weightingJSON, &s.VotemapEnabled, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return orchestrator.ManagedServer{}, err
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &s.RCONHeaders); err != nil {
			return orchestrator.ManagedServer{}, fmt.Errorf("decoding rcon headers: %w", err)
		}
	}
	if len(weightingJSON) > 0 {
		var w model.WeightingParameters
		if err := json.Unmarshal(weightingJSON, &w); err != nil {
			return orchestrator.ManagedServer{}, fmt.Errorf("decoding weighting parameters: %w", err)
		}
		s.Weighting = &w
	}
	return s, nil
}

// List returns every managed server record, across all guilds.
func (r *ServerRepository) List(ctx context.Context) ([]orchestrator.ManagedServer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serverColumns+` FROM managed_servers ORDER BY guild_id, label`)
	if err != nil {
		return nil, fmt.Errorf("listing managed servers: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.ManagedServer
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning managed server: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing managed servers: %w", err)
	}
	return out, nil
}

// Get returns one record by id, or nil if it does not exist.
func (r *ServerRepository) Get(ctx context.Context, id string) (*orchestrator.ManagedServer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+serverColumns+` FROM managed_servers WHERE id = $1::uuid`, id)
	s, err := scanServer(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying managed server %s: %w", id, err)
	}
	return &s, nil
}

// Insert persists a new record, reporting *orchestrator.DuplicateError on a
// (guild_id, label) or (guild_id, api_url) conflict.
func (r *ServerRepository) Insert(ctx context.Context, server orchestrator.ManagedServer) (*orchestrator.ManagedServer, error) {
	headersJSON, err := json.Marshal(server.RCONHeaders)
	if err != nil {
		return nil, fmt.Errorf("encoding rcon headers: %w", err)
	}
	var weightingJSON []byte
	if server.Weighting != nil {
		weightingJSON, err = json.Marshal(server.Weighting)
		if err != nil {
			return nil, fmt.Errorf("encoding weighting parameters: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO managed_servers
			(guild_id, label, api_url, api_key, rcon_headers_json, weighting_params_json, votemap_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+serverColumns,
		server.GuildID, server.Label, server.APIURL, server.APIKey, headersJSON, weightingJSON, server.VotemapEnabled,
	)
	created, err := scanServer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &orchestrator.DuplicateError{Field: duplicateField(pgErr), Value: server.Label}
		}
		return nil, fmt.Errorf("inserting managed server %s: %w", server.Label, err)
	}
	return &created, nil
}

// Delete removes a record by id. Deleting a missing id is not an error.
func (r *ServerRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM managed_servers WHERE id = $1::uuid`, id); err != nil {
		return fmt.Errorf("deleting managed server %s: %w", id, err)
	}
	return nil
}

// UpdateWeighting replaces the persisted weighting parameters for id.
func (r *ServerRepository) UpdateWeighting(ctx context.Context, id string, weighting *model.WeightingParameters) error {
	var weightingJSON []byte
	if weighting != nil {
		var err error
		weightingJSON, err = json.Marshal(weighting)
		if err != nil {
			return fmt.Errorf("encoding weighting parameters: %w", err)
		}
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE managed_servers SET weighting_params_json = $1, updated_at = $2 WHERE id = $3::uuid`,
		weightingJSON, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating weighting parameters for %s: %w", id, err)
	}
	return nil
}

// UpdateVotemapEnabled replaces the persisted enabled flag for id.
func (r *ServerRepository) UpdateVotemapEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE managed_servers SET votemap_enabled = $1, updated_at = $2 WHERE id = $3::uuid`,
		enabled, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating votemap_enabled for %s: %w", id, err)
	}
	return nil
}

func duplicateField(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName == "managed_servers_guild_api_url_idx" {
		return "api_url"
	}
	return "label"
}
