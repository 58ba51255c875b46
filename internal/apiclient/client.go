// Package apiclient implements the CRCON HTTP API client (spec §4.1, §6):
// status/catalog/config/whitelist reads, the whitelist-swap writes, and the
// peripheral player-management calls, all behind one retried, bearer-authed
// http.Client session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwcc-clan/polebot-go/internal/backoff"
	"github.com/bwcc-clan/polebot-go/internal/model"
)

// Config configures a Client. BaseURL must already be normalized (see
// internal/convert.NormalizeAPIURL).
type Config struct {
	BaseURL      string
	APIKey       string
	ExtraHeaders map[string]string
	Timeout      time.Duration // default 30s
	Retry        backoff.RetryConfig
	Logger       *slog.Logger
}

// Client is a long-lived, single-owner CRCON API session (spec §4.1:
// "one long-lived session per client instance").
type Client struct {
	baseURL      string
	apiKey       string
	extraHeaders map[string]string
	httpClient   *http.Client
	retry        backoff.RetryConfig
	logger       *slog.Logger
}

// New constructs a Client. It does not perform any network I/O.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		extraHeaders: cfg.ExtraHeaders,
		httpClient:   &http.Client{Timeout: timeout},
		retry:        cfg.Retry,
		logger:       logger,
	}
}

// isRetryableStatus reports whether an HTTP status code should be retried:
// any 5xx (spec §4.1 default retry-all-5xx=true).
func isRetryableStatus(code int) bool {
	return code >= 500 && code < 600
}

// retryableErr marks transport-level errors (socket, timeout) as retryable;
// everything else (a non-5xx HTTP status, a decode failure) is treated as
// permanent by the retry loop.
type retryableErr struct{ err error }

func (e *retryableErr) Error() string { return e.err.Error() }
func (e *retryableErr) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, command string, body any, out any) error {
	op := func() error {
		req, err := c.buildRequest(ctx, method, command, body)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retryableErr{err: fmt.Errorf("%s %s: %w", method, command, err)}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &retryableErr{err: fmt.Errorf("%s %s: reading body: %w", method, command, err)}
		}

		if isRetryableStatus(resp.StatusCode) {
			return &retryableErr{err: fmt.Errorf("%s %s: upstream status %d", method, command, resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return &FatalError{Op: command, Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(raw))}
		}

		return decodeEnvelope(command, raw, out)
	}

	return backoff.Retry(ctx, c.retry, op, func(err error) bool {
		_, ok := err.(*retryableErr)
		return ok
	}, func(err error, delay time.Duration) {
		c.logger.Warn("apiclient: retrying after transient failure", "command", command, "delay", delay, "error", err)
	})
}

// decodeEnvelope is generic-free so that callers passing *T (via `out`) can
// share it regardless of T — the envelope's Result field is decoded straight
// into whatever out points to through a second json.Unmarshal pass, since Go
// generics can't infer T from an `any` parameter.
func decodeEnvelope(command string, raw []byte, out any) error {
	var env struct {
		Command string          `json:"command"`
		Failed  bool            `json:"failed"`
		Error   *string         `json:"error"`
		Version string          `json:"version"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("apiclient: decoding %s response: %w", command, err)
	}
	if env.Failed {
		text := ""
		if env.Error != nil {
			text = *env.Error
		}
		return &ApiError{Command: command, UpstreamErrorText: text, Version: env.Version}
	}
	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("apiclient: decoding %s result: %w", command, err)
	}
	return nil
}

func (c *Client) buildRequest(ctx context.Context, method, command string, body any) (*http.Request, error) {
	url := c.baseURL + "/api/" + command

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encoding %s request: %w", command, err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: building %s request: %w", command, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// GetStatus fetches the current server snapshot (spec §4.1).
func (c *Client) GetStatus(ctx context.Context) (*model.ServerStatus, error) {
	var result model.ServerStatus
	if err := c.do(ctx, http.MethodGet, "get_status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMaps fetches the full layer catalog.
func (c *Client) GetMaps(ctx context.Context) ([]model.Layer, error) {
	var result []model.Layer
	if err := c.do(ctx, http.MethodGet, "get_maps", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetVotemapConfig fetches the server's current votemap user configuration.
func (c *Client) GetVotemapConfig(ctx context.Context) (*model.VoteMapUserConfig, error) {
	var result model.VoteMapUserConfig
	if err := c.do(ctx, http.MethodGet, "get_votemap_config", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetVotemapWhitelist fetches the server's current live whitelist. Never
// cached (spec §4.5: "not cached — always live").
func (c *Client) GetVotemapWhitelist(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.do(ctx, http.MethodGet, "get_votemap_whitelist", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type setWhitelistRequest struct {
	MapNames []string `json:"map_names"`
}

// SetVotemapWhitelist replaces the server's votemap whitelist.
func (c *Client) SetVotemapWhitelist(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.do(ctx, http.MethodPost, "set_votemap_whitelist", setWhitelistRequest{MapNames: ids}, nil)
}

// ResetVotemapState asks the server to regenerate its in-game vote ballot
// from the current whitelist.
func (c *Client) ResetVotemapState(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "reset_votemap_state", struct{}{}, nil)
}

// PlayerID pairs a player's display name with their persistent id (spec
// §4.1: get_playerids() -> [(name, id)]).
type PlayerID struct {
	Name string `json:"name"`
	ID   string `json:"player_id"`
}

// GetPlayerIDs lists the players currently connected.
func (c *Client) GetPlayerIDs(ctx context.Context) ([]PlayerID, error) {
	var result []PlayerID
	if err := c.do(ctx, http.MethodGet, "get_playerids", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type messagePlayerRequest struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}

// MessagePlayer sends a structured in-game message to one player.
func (c *Client) MessagePlayer(ctx context.Context, playerID, message string) error {
	return c.do(ctx, http.MethodPost, "message_player", messagePlayerRequest{PlayerID: playerID, Message: message}, nil)
}

// DownloadVIPs fetches the server's VIP list as raw text.
func (c *Client) DownloadVIPs(ctx context.Context) (string, error) {
	var result string
	if err := c.do(ctx, http.MethodGet, "download_vips", nil, &result); err != nil {
		return "", err
	}
	return result, nil
}
