package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bwcc-clan/polebot-go/internal/apiclient"
	"github.com/bwcc-clan/polebot-go/internal/backoff"
	"github.com/bwcc-clan/polebot-go/internal/controller"
	"github.com/bwcc-clan/polebot-go/internal/convert"
	"github.com/bwcc-clan/polebot-go/internal/logstream"
	"github.com/bwcc-clan/polebot-go/internal/model"
	"github.com/bwcc-clan/polebot-go/internal/votemap"
)

// Config carries the connection defaults shared by every server's API
// client and log-stream client.
type Config struct {
	HTTPTimeout   time.Duration
	HTTPRetry     backoff.RetryConfig
	WSOpenTimeout time.Duration
	WSBackoff     backoff.SequenceConfig
}

// ControllerFactory builds a ready-to-run Controller for one managed
// server. Exposed so tests can substitute a fake that never dials out.
type ControllerFactory func(server ManagedServer, logger *slog.Logger) (*controller.Controller, error)

// Orchestrator launches one Controller per managed server (spec §4.7, C7)
// and exposes management mutations that persist through repo and propagate
// live to a running Controller.
type Orchestrator struct {
	repo    ServerRepository
	factory ControllerFactory
	logger  *slog.Logger

	mu          sync.Mutex
	controllers map[string]*controller.Controller
}

// New builds an Orchestrator using the default factory, which dials real
// CRCON API/WebSocket connections via internal/apiclient and
// internal/logstream.
func New(repo ServerRepository, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithFactory(repo, logger, defaultControllerFactory(cfg))
}

// NewWithFactory builds an Orchestrator with a custom ControllerFactory, for
// tests that must avoid real network I/O.
func NewWithFactory(repo ServerRepository, logger *slog.Logger, factory ControllerFactory) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:        repo,
		factory:     factory,
		logger:      logger,
		controllers: make(map[string]*controller.Controller),
	}
}

func defaultControllerFactory(cfg Config) ControllerFactory {
	return func(server ManagedServer, logger *slog.Logger) (*controller.Controller, error) {
		api, baseURL, apiKey, err := buildAPIClient(server, cfg, logger)
		if err != nil {
			return nil, err
		}

		wsURL, err := convert.WebSocketURL(baseURL)
		if err != nil {
			return nil, err
		}

		proc := votemap.New(api, logger)
		if server.Weighting != nil {
			proc.SetWeightingParameters(server.Weighting)
			if server.VotemapEnabled {
				if err := proc.SetEnabled(true); err != nil {
					return nil, fmt.Errorf("orchestrator: enabling votemap for %s: %w", server.Label, err)
				}
			}
		}

		logClient := logstream.New(logstream.Config{
			WSURL:       wsURL,
			APIKey:      apiKey,
			OpenTimeout: cfg.WSOpenTimeout,
			Backoff:     cfg.WSBackoff,
			Logger:      logger,
		})

		return controller.New(server.Label, api, proc, logClient, logger), nil
	}
}

// buildAPIClient normalizes the server's URL/headers/secrets and constructs
// the API client, returning the normalized base URL and expanded API key
// alongside it for callers that also need to build a log-stream client.
func buildAPIClient(server ManagedServer, cfg Config, logger *slog.Logger) (*apiclient.Client, string, string, error) {
	baseURL, err := convert.NormalizeAPIURL(server.APIURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("orchestrator: server %s: %w", server.Label, err)
	}
	apiKey, err := convert.ExpandEnvSecret(server.APIKey)
	if err != nil {
		return nil, "", "", fmt.Errorf("orchestrator: server %s: %w", server.Label, err)
	}
	headers := make(map[string]string, len(server.RCONHeaders))
	for k, v := range server.RCONHeaders {
		expanded, err := convert.ExpandEnvSecret(v)
		if err != nil {
			return nil, "", "", fmt.Errorf("orchestrator: server %s: header %s: %w", server.Label, k, err)
		}
		headers[k] = expanded
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		ExtraHeaders: headers,
		Timeout:      cfg.HTTPTimeout,
		Retry:        cfg.HTTPRetry,
		Logger:       logger,
	})
	return api, baseURL, apiKey, nil
}

// Run loads every managed server from the repository and runs one
// Controller per server under a supervising task group. Run returns when
// every controller has settled; a single controller's fatal error cancels
// every other controller's context too, matching the source's single
// asyncio.TaskGroup (an unhandled exception in one task collapses the
// whole group).
func (o *Orchestrator) Run(ctx context.Context) error {
	servers, err := o.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: listing servers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		server := server
		ctrl, err := o.factory(server, o.logger)
		if err != nil {
			o.logger.Error("orchestrator: failed to build controller, skipping server", "server", server.Label, "error", err)
			continue
		}

		o.mu.Lock()
		o.controllers[server.ID] = ctrl
		o.mu.Unlock()

		g.Go(func() error {
			defer func() {
				o.mu.Lock()
				delete(o.controllers, server.ID)
				o.mu.Unlock()
			}()
			o.logger.Info("orchestrator: starting server controller", "server", server.Label)
			err := ctrl.Run(gctx)
			o.logger.Info("orchestrator: server controller stopped", "server", server.Label, "error", err)
			return err
		})
	}

	return g.Wait()
}

// controllerFor returns the in-memory Controller for id, or nil if none is
// running (e.g. the orchestrator hasn't started it, or the record is new).
func (o *Orchestrator) controllerFor(id string) *controller.Controller {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.controllers[id]
}

// AddServer health-checks the candidate connection (spec §4.7: "performs a
// health-check API call before persisting") then persists the record. It
// does not start a live Controller; that happens on the next Orchestrator
// restart, matching the source's per-process task-group lifetime.
func (o *Orchestrator) AddServer(ctx context.Context, server ManagedServer) (*ManagedServer, error) {
	api, _, _, err := buildAPIClient(server, Config{}, o.logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: adding server %s: %w", server.Label, err)
	}
	if _, err := api.GetStatus(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: health check failed for server %s: %w", server.Label, err)
	}

	created, err := o.repo.Insert(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: persisting server %s: %w", server.Label, err)
	}
	return created, nil
}

// RemoveServer deletes the persisted record and stops its live Controller,
// if one is running.
func (o *Orchestrator) RemoveServer(ctx context.Context, id string) error {
	if err := o.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("orchestrator: removing server %s: %w", id, err)
	}
	if ctrl := o.controllerFor(id); ctrl != nil {
		ctrl.Stop(true)
	}
	return nil
}

// SetWeightingParameters persists weighting for id and, if a Controller is
// live, replaces its in-memory parameters without restarting it (spec §4.7:
// "propagate the change live ... without restarting it").
func (o *Orchestrator) SetWeightingParameters(ctx context.Context, id string, weighting *model.WeightingParameters) error {
	if err := o.repo.UpdateWeighting(ctx, id, weighting); err != nil {
		return fmt.Errorf("orchestrator: updating weighting for server %s: %w", id, err)
	}
	if ctrl := o.controllerFor(id); ctrl != nil {
		ctrl.SetWeightingParameters(weighting)
	}
	return nil
}

// SetVotemapEnabled persists the enabled flag for id and, if a Controller is
// live, toggles it without restarting the controller. Enabling without
// weighting parameters already on record is rejected before anything is
// persisted or propagated (spec §4.7: "can't enable votemap bot" without
// settings).
func (o *Orchestrator) SetVotemapEnabled(ctx context.Context, id string, enabled bool) error {
	if enabled {
		server, err := o.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("orchestrator: looking up server %s: %w", id, err)
		}
		if server == nil {
			return fmt.Errorf("orchestrator: server %s not found", id)
		}
		if server.Weighting == nil {
			return fmt.Errorf("orchestrator: server %s has no weighting parameters, can't enable votemap", id)
		}
	}

	if err := o.repo.UpdateVotemapEnabled(ctx, id, enabled); err != nil {
		return fmt.Errorf("orchestrator: updating votemap_enabled for server %s: %w", id, err)
	}
	if ctrl := o.controllerFor(id); ctrl != nil {
		if err := ctrl.SetVotemapEnabled(enabled); err != nil {
			return fmt.Errorf("orchestrator: enabling votemap for server %s: %w", id, err)
		}
	}
	return nil
}

// SendMessageToGroup forwards to the live Controller for id.
func (o *Orchestrator) SendMessageToGroup(ctx context.Context, id string, matcher *controller.PlayerMatcher, message string) ([]apiclient.PlayerID, error) {
	ctrl := o.controllerFor(id)
	if ctrl == nil {
		return nil, fmt.Errorf("orchestrator: server %s is not currently running", id)
	}
	return ctrl.SendMessageToGroup(ctx, matcher, message)
}

// GetVipInfo forwards to the live Controller for id.
func (o *Orchestrator) GetVipInfo(ctx context.Context, id, playerIDOrName string) (*model.VipInfo, error) {
	ctrl := o.controllerFor(id)
	if ctrl == nil {
		return nil, fmt.Errorf("orchestrator: server %s is not currently running", id)
	}
	return ctrl.GetVipInfo(ctx, playerIDOrName)
}
