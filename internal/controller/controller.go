// Package controller implements the per-server supervisor (spec §4.6, C6):
// it owns the bounded queue between the log-stream client and the votemap
// processor, supervises both under one cancellable task group, and forwards
// peripheral player-management operations.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bwcc-clan/polebot-go/internal/apiclient"
	"github.com/bwcc-clan/polebot-go/internal/cache"
	"github.com/bwcc-clan/polebot-go/internal/logstream"
	"github.com/bwcc-clan/polebot-go/internal/model"
	"github.com/bwcc-clan/polebot-go/internal/votemap"
)

// QueueCapacity is the fixed bound on the log-stream-to-processor queue
// (spec §4.6/§5: "capacity 1000, fixed").
const QueueCapacity = 1000

// vipListCacheTTL mirrors the original implementation's
// vip_manager.py ttl_cached(time_to_live=60) on the downloaded VIP list.
const vipListCacheTTL = 60 * time.Second

// API is the peripheral subset of apiclient.Client the controller forwards
// directly, independent of votemap.API.
type API interface {
	GetPlayerIDs(ctx context.Context) ([]apiclient.PlayerID, error)
	MessagePlayer(ctx context.Context, playerID, message string) error
	DownloadVIPs(ctx context.Context) (string, error)
}

var _ API = (*apiclient.Client)(nil)

// LogStreamRunner is the subset of logstream.Client the controller drives,
// extracted so tests can substitute a stub that fails fatally without a real
// network dependency (spec §8 scenario 6).
type LogStreamRunner interface {
	SetActions(actions []model.LogMessageType)
	Run(ctx context.Context, queue chan<- model.LogStreamObject) error
}

var _ LogStreamRunner = (*logstream.Client)(nil)

// Controller supervises one managed server's log-stream client and votemap
// processor as a unit. A Controller is single-use: construct with New, call
// Run exactly once, and Stop to end it early.
type Controller struct {
	label     string
	api       API
	processor *votemap.Processor
	logClient LogStreamRunner
	queue     chan model.LogStreamObject
	logger    *slog.Logger

	vipCache     *cache.Cache
	cachedVIPDoc func(ctx context.Context) (string, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New builds a Controller. label identifies the server in log output.
func New(label string, api API, processor *votemap.Processor, logClient LogStreamRunner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		label:     label,
		api:       api,
		processor: processor,
		logClient: logClient,
		queue:     make(chan model.LogStreamObject, QueueCapacity),
		logger:    logger,
		vipCache:  cache.New(cache.DefaultCapacity),
		stopped:   make(chan struct{}),
	}
	c.cachedVIPDoc = cache.Cached[string](c, "vip", "download_vips", nil, nil, vipListCacheTTL, api.DownloadVIPs)
	return c
}

// GetCache implements cache.Host for the VIP-list lookup's TTL cache.
func (c *Controller) GetCache(hint string) *cache.Cache {
	if hint != "vip" {
		panic("controller: unknown cache hint " + hint)
	}
	return c.vipCache
}

// Run enters the processor and log-stream client (in that order, per spec
// §4.6), setting the log-stream filter to {match_start, match_end} first,
// then supervises both run loops under one cancellable group. Run returns
// when both tasks settle: nil on ordinary cancellation, or a *FatalError
// wrapping an unrecoverable task failure such as a first-connect DNS error
// (spec §8 scenario 6) with no further retry.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		close(c.stopped)
	}()

	c.logClient.SetActions([]model.LogMessageType{model.LogMatchStart, model.LogMatchEnded})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.processor.Run(gctx, c.queue)
	})
	g.Go(func() error {
		return c.logClient.Run(gctx, c.queue)
	})

	err := g.Wait()
	cancel()

	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	var lsFatal *logstream.FatalError
	if errors.As(err, &lsFatal) {
		c.logger.Error("controller: log-stream client failed fatally, not retrying", "server", c.label, "error", err)
		return &FatalError{Task: "log-stream-client", Err: err}
	}
	return err
}

// Stop asks the supervised task group to terminate. If wait, Stop blocks
// until Run has returned.
func (c *Controller) Stop(wait bool) {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if wait {
		<-c.stopped
	}
}

// SetVotemapEnabled delegates to the processor, respecting its enable
// invariant (spec §4.6).
func (c *Controller) SetVotemapEnabled(enabled bool) error {
	return c.processor.SetEnabled(enabled)
}

// SetWeightingParameters delegates to the processor. A nil params disables
// the processor implicitly.
func (c *Controller) SetWeightingParameters(params *model.WeightingParameters) {
	c.processor.SetWeightingParameters(params)
}

// SendMessageToPlayer forwards a single message_player call.
func (c *Controller) SendMessageToPlayer(ctx context.Context, playerID, message string) error {
	return c.api.MessagePlayer(ctx, playerID, message)
}

// GetPlayerIDs forwards a single get_playerids call.
func (c *Controller) GetPlayerIDs(ctx context.Context) ([]apiclient.PlayerID, error) {
	return c.api.GetPlayerIDs(ctx)
}

// DownloadVIPs forwards a single download_vips call, returning the raw
// upstream document.
func (c *Controller) DownloadVIPs(ctx context.Context) (string, error) {
	return c.api.DownloadVIPs(ctx)
}

// GetPlayersInGroup resolves a group as the connected players whose name
// matches matcher (spec §4.6, supplemented from the original's
// server_manager.py grouping helper).
func (c *Controller) GetPlayersInGroup(ctx context.Context, matcher *PlayerMatcher) ([]apiclient.PlayerID, error) {
	players, err := c.api.GetPlayerIDs(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]apiclient.PlayerID, 0, len(players))
	for _, p := range players {
		if matcher.IsMatch(p.Name) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// SendMessageToGroup messages every player matching matcher concurrently,
// matching message_sender.py's per-player task fan-out: a failed send is
// logged and excluded from the returned set rather than failing the whole
// call.
func (c *Controller) SendMessageToGroup(ctx context.Context, matcher *PlayerMatcher, message string) ([]apiclient.PlayerID, error) {
	matched, err := c.GetPlayersInGroup(ctx, matcher)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	sent := make([]apiclient.PlayerID, 0, len(matched))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range matched {
		g.Go(func() error {
			if err := c.api.MessagePlayer(gctx, p.ID, message); err != nil {
				c.logger.Warn("controller: message_player failed", "player_id", p.ID, "error", err)
				return nil
			}
			mu.Lock()
			sent = append(sent, p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sent, nil
}

// GetVipInfo downloads and parses the VIP list, returning the entry whose
// player id or name matches, or nil if none does. The downloaded list is
// cached for vipListCacheTTL (spec supplemented from the original's
// vip_manager.py), unlike DownloadVIPs's direct, uncached forward.
func (c *Controller) GetVipInfo(ctx context.Context, playerIDOrName string) (*model.VipInfo, error) {
	doc, err := c.cachedVIPDoc(ctx)
	if err != nil {
		return nil, err
	}
	for _, vip := range parseVIPList(doc) {
		if vip.PlayerID == playerIDOrName || vip.PlayerName == playerIDOrName {
			v := vip
			return &v, nil
		}
	}
	return nil, nil
}
