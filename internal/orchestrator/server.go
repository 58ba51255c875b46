// Package orchestrator implements spec §4.7 (C7): on startup it launches
// one Controller per managed server under a supervising task group, and
// exposes management mutations that persist through a ServerRepository and
// propagate live to the in-memory Controller when one is running.
package orchestrator

import (
	"context"
	"time"

	"github.com/bwcc-clan/polebot-go/internal/model"
)

// ManagedServer is one persisted server record (spec SPEC_FULL.md §A.4): a
// CRCON connection plus its per-server votemap configuration.
type ManagedServer struct {
	ID             string
	GuildID        string
	Label          string
	APIURL         string
	APIKey         string
	RCONHeaders    map[string]string
	Weighting      *model.WeightingParameters
	VotemapEnabled bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ServerRepository is the persistence port spec.md §1 assumes ("a document
// store is assumed; the core consumes a repository interface"). It is
// implemented by internal/db on Postgres.
type ServerRepository interface {
	// List returns every managed server record, across all guilds.
	List(ctx context.Context) ([]ManagedServer, error)
	// Get returns one record by id, or nil if it does not exist.
	Get(ctx context.Context, id string) (*ManagedServer, error)
	// Insert persists a new record. It must fail with a *DuplicateError if
	// (guild_id, label) or (guild_id, api_url) already exists.
	Insert(ctx context.Context, server ManagedServer) (*ManagedServer, error)
	// Delete removes a record by id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// UpdateWeighting replaces the persisted weighting parameters for id.
	UpdateWeighting(ctx context.Context, id string, weighting *model.WeightingParameters) error
	// UpdateVotemapEnabled replaces the persisted enabled flag for id.
	UpdateVotemapEnabled(ctx context.Context, id string, enabled bool) error
}

// DuplicateError reports a unique-index violation on (guild_id, label) or
// (guild_id, api_url), per spec §4.7: "Duplicate-label and duplicate-URL
// constraints are enforced by repository unique indices."
type DuplicateError struct {
	Field string // "label" or "api_url"
	Value string
}

func (e *DuplicateError) Error() string {
	return "orchestrator: a server with " + e.Field + " " + e.Value + " already exists for this guild"
}
