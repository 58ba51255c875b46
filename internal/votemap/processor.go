// Package votemap implements the per-server votemap processor (spec §4.5,
// C5): the event-driven state machine that turns match-lifecycle log events
// into cached state reads, a weighted selection, and a guarded whitelist
// swap on the upstream CRCON server.
package votemap

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/bwcc-clan/polebot-go/internal/apiclient"
	"github.com/bwcc-clan/polebot-go/internal/cache"
	"github.com/bwcc-clan/polebot-go/internal/mapselector"
	"github.com/bwcc-clan/polebot-go/internal/model"
)

// API is the subset of apiclient.Client the processor depends on, extracted
// so tests can substitute a stub (spec §8 scenarios 3-5).
type API interface {
	GetStatus(ctx context.Context) (*model.ServerStatus, error)
	GetMaps(ctx context.Context) ([]model.Layer, error)
	GetVotemapConfig(ctx context.Context) (*model.VoteMapUserConfig, error)
	GetVotemapWhitelist(ctx context.Context) ([]string, error)
	SetVotemapWhitelist(ctx context.Context, ids []string) error
	ResetVotemapState(ctx context.Context) error
}

var _ API = (*apiclient.Client)(nil)

const (
	statusCacheTTL  = 10 * time.Second
	catalogCacheTTL = 8 * time.Hour
	configCacheTTL  = 10 * time.Minute
	swapSettleDelay = 2 * time.Second
	restoreTimeout  = 10 * time.Second
)

// Processor owns one server's votemap state machine: Unconfigured (no
// weighting parameters) -> Configured (parameters set, disabled) ->
// Enabled (parameters set, enabled). Enabling without parameters is a
// precondition violation; clearing parameters implicitly disables.
type Processor struct {
	api    API
	logger *slog.Logger

	statusCache  *cache.Cache
	catalogCache *cache.Cache
	configCache  *cache.Cache

	cachedStatus  func(ctx context.Context) (*model.ServerStatus, error)
	cachedCatalog func(ctx context.Context) ([]model.Layer, error)
	cachedConfig  func(ctx context.Context) (*model.VoteMapUserConfig, error)

	mu        sync.Mutex
	weighting *model.WeightingParameters
	enabled   bool
	history   *model.LayerHistory

	// float64 returns a value in [0,1); injectable for deterministic tests.
	float64 func() float64
}

// New builds a Processor. It starts Unconfigured: disabled, no weighting
// parameters, an empty history.
func New(api API, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		api:          api,
		logger:       logger,
		statusCache:  cache.New(cache.DefaultCapacity),
		catalogCache: cache.New(cache.DefaultCapacity),
		configCache:  cache.New(cache.DefaultCapacity),
		history:      model.NewLayerHistory(),
		float64:      rand.Float64,
	}
	p.cachedStatus = cache.Cached[*model.ServerStatus](p, "status", "get_status", nil, nil, statusCacheTTL, api.GetStatus)
	p.cachedCatalog = cache.Cached[[]model.Layer](p, "catalog", "get_maps", nil, nil, catalogCacheTTL, api.GetMaps)
	p.cachedConfig = cache.Cached[*model.VoteMapUserConfig](p, "config", "get_votemap_config", nil, nil, configCacheTTL, api.GetVotemapConfig)
	return p
}

// GetCache implements cache.Host, dispatching on the hint each cached call
// was built with.
func (p *Processor) GetCache(hint string) *cache.Cache {
	switch hint {
	case "status":
		return p.statusCache
	case "catalog":
		return p.catalogCache
	case "config":
		return p.configCache
	default:
		panic("votemap: unknown cache hint " + hint)
	}
}

// SetWeightingParameters replaces the active parameters. A nil params
// implicitly disables the processor (Configured/Enabled -> Unconfigured).
func (p *Processor) SetWeightingParameters(params *model.WeightingParameters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weighting = params
	if params == nil {
		p.enabled = false
	}
}

// SetEnabled toggles the processor's enabled state. Enabling with no
// weighting parameters configured is a precondition violation (spec §7:
// programmer error, not a runtime failure).
func (p *Processor) SetEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled && p.weighting == nil {
		return &PreconditionError{Op: "SetEnabled(true)", Reason: "weighting parameters not configured"}
	}
	p.enabled = enabled
	return nil
}

// Enabled reports the current enabled flag.
func (p *Processor) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// History returns a snapshot of the recently-completed layer ids, newest
// first.
func (p *Processor) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Slice()
}

func (p *Processor) snapshot() (weighting *model.WeightingParameters, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.weighting, p.enabled
}

// HandleLogObject dispatches one decoded log line per spec §4.5: match_start
// triggers Selection-and-Apply when enabled; match_end always refreshes the
// cached status and records history; anything else is logged and ignored.
func (p *Processor) HandleLogObject(ctx context.Context, obj model.LogStreamObject) {
	switch obj.Log.Action {
	case model.LogMatchStart:
		weighting, enabled := p.snapshot()
		if !enabled || weighting == nil {
			return
		}
		if err := p.selectAndApply(ctx, *weighting); err != nil {
			p.logger.Error("votemap: selection-and-apply failed", "error", err)
		}
	case model.LogMatchEnded:
		if err := p.recordMatchEnd(ctx); err != nil {
			p.logger.Error("votemap: recording match end failed", "error", err)
		}
	default:
		p.logger.Debug("votemap: ignoring unhandled log action", "action", obj.Log.Action)
	}
}

// Run consumes queue until ctx is cancelled or the queue is closed,
// dispatching each object via HandleLogObject.
func (p *Processor) Run(ctx context.Context, queue <-chan model.LogStreamObject) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obj, ok := <-queue:
			if !ok {
				return nil
			}
			p.HandleLogObject(ctx, obj)
		}
	}
}

func (p *Processor) recordMatchEnd(ctx context.Context) error {
	status, err := p.cachedStatus(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.history.Prepend(status.CurrentLayer.ID)
	p.mu.Unlock()
	return nil
}

// selectAndApply implements spec §4.5's Selection-and-Apply protocol: fetch
// cached state and the live whitelist, filter the catalog, compute a
// selection, and if non-empty, swap/reset/swap-back the upstream whitelist.
// Step f (restore) always runs once the swap has started, even if an
// intermediate step failed.
func (p *Processor) selectAndApply(ctx context.Context, weighting model.WeightingParameters) error {
	status, err := p.cachedStatus(ctx)
	if err != nil {
		return err
	}
	catalog, err := p.cachedCatalog(ctx)
	if err != nil {
		return err
	}
	userConfig, err := p.cachedConfig(ctx)
	if err != nil {
		return err
	}
	whitelist, err := p.api.GetVotemapWhitelist(ctx)
	if err != nil {
		return err
	}

	filtered := filterByWhitelist(catalog, whitelist)

	p.mu.Lock()
	history := p.history
	p.mu.Unlock()

	selector := &mapselector.Selector{
		Status:     status,
		Catalog:    filtered,
		Weighting:  weighting,
		UserConfig: *userConfig,
		History:    history,
		Float64:    p.float64,
	}
	selection := selector.Select()
	if len(selection) == 0 {
		return nil
	}

	saved := append([]string(nil), whitelist...)
	defer func() {
		restoreCtx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		if err := p.api.SetVotemapWhitelist(restoreCtx, saved); err != nil {
			p.logger.Error("votemap: restoring pre-swap whitelist failed", "error", err)
		}
	}()

	if err := p.api.SetVotemapWhitelist(ctx, []string(selection)); err != nil {
		p.logger.Error("votemap: applying selection to whitelist failed", "error", err)
		return nil
	}
	if !sleep(ctx, swapSettleDelay) {
		return nil
	}
	if err := p.api.ResetVotemapState(ctx); err != nil {
		p.logger.Error("votemap: resetting votemap state failed", "error", err)
		return nil
	}
	sleep(ctx, swapSettleDelay)
	return nil
}

func filterByWhitelist(catalog []model.Layer, whitelist []string) []model.Layer {
	allowed := make(map[string]struct{}, len(whitelist))
	for _, id := range whitelist {
		allowed[id] = struct{}{}
	}
	filtered := make([]model.Layer, 0, len(catalog))
	for _, l := range catalog {
		if _, ok := allowed[l.ID]; ok {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

// sleep waits for d or ctx cancellation, returning false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
