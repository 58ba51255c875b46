package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwcc-clan/polebot-go/internal/backoff"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Retry:   backoff.RetryConfig{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
	})
}

func TestGetStatusDecodesResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"command":"get_status","failed":false,"error":null,"version":"1.0","result":{"name":"srv1","current_players":10,"max_players":100,"short_name":"s1","server_number":1}}`))
	})

	status, err := c.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "srv1", status.Name)
	assert.Equal(t, 10, status.CurrentPlayers)
}

func TestFailedResponseYieldsApiError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"command":"get_maps","failed":true,"error":"boom","version":"1.0","result":null}`))
	})

	_, err := c.GetMaps(t.Context())
	require.Error(t, err)

	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.UpstreamErrorText)
}

func TestRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"command":"get_votemap_whitelist","failed":false,"error":null,"version":"1.0","result":["a","b"]}`))
	})

	ids, err := c.GetVotemapWhitelist(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "expected 2 retries then success")
}

func Test4xxIsFatalNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetStatus(t.Context())
	require.Error(t, err)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not retry")
}

func TestSetVotemapWhitelistSendsMapNames(t *testing.T) {
	var received struct {
		MapNames []string `json:"map_names"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"command":"set_votemap_whitelist","failed":false,"error":null,"version":"1.0","result":null}`))
	})

	err := c.SetVotemapWhitelist(t.Context(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, received.MapNames)
}
