// Package bridge implements a minimal client for the Hue bridge v1 REST
// API: configuration reads, light/group state writes, group CRUD and the
// new-light scan. The API username is derived from the local host identity
// (see token.go), so nothing has to be stored between invocations.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DeviceType is the devicetype the client registers under.
const DeviceType = "huectl"

var (
	// ErrUnreachable wraps transport-level failures talking to the bridge.
	ErrUnreachable = errors.New("hue bridge unreachable")

	// ErrUnauthorized means the derived token is not registered with the
	// bridge (API error type 1).
	ErrUnauthorized = errors.New("token not registered with the bridge, run the register operation first")

	// ErrScanTimeout means a new-light scan did not complete within the
	// polling budget.
	ErrScanTimeout = errors.New("new-light scan did not complete in time")
)

// Options tune a Client. Zero values fall back to the defaults below.
type Options struct {
	Token        string  // API username; derived from the host when empty
	Timeout      time.Duration // per-request HTTP timeout (default 5s)
	RateLimitRPS float64 // bridge API rate limit (default 10 rps)
}

// Client talks to a single Hue bridge. The token is computed once at
// construction and held immutable; all methods take a context and go
// through the rate limiter.
type Client struct {
	address    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter

	scanPollInterval time.Duration
}

// NewClient creates a client for the bridge at the given address.
func NewClient(address string, opts Options) *Client {
	token := opts.Token
	if token == "" {
		token = DeriveToken()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	rps := opts.RateLimitRPS
	if rps == 0 {
		rps = 10.0
	}

	return &Client{
		address:          address,
		token:            token,
		httpClient:       &http.Client{Timeout: timeout},
		limiter:          rate.NewLimiter(rate.Limit(rps), int(rps)),
		scanPollInterval: time.Second,
	}
}

// Address returns the bridge address.
func (c *Client) Address() string {
	return c.address
}

// Token returns the API username the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s/api/%s%s", c.address, c.token, path)
}

// do issues one request and decodes the response body into out. The v1
// API signals failures as a 200 response carrying an error array, so the
// body is buffered and inspected before the object decode.
func (c *Client) do(ctx context.Context, method, url string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrUnreachable, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decoding bridge response: %w", err)
	}
	return decodeReply(raw, out)
}

// decodeReply decodes a v1 API reply. Replies are either the requested
// object or a per-item result array; an array on an object read means the
// call failed and the first error explains why.
func decodeReply(raw json.RawMessage, out any) error {
	if res, ok := out.(*Result); ok {
		return json.Unmarshal(raw, res)
	}

	if len(raw) > 0 && raw[0] == '[' {
		var res Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("decoding bridge error reply: %w", err)
		}
		if apiErr := res.FirstError(); apiErr != nil {
			if apiErr.Type == errTypeUnauthorized {
				return fmt.Errorf("%w: %v", ErrUnauthorized, apiErr)
			}
			return apiErr
		}
		return fmt.Errorf("unexpected array reply from bridge")
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// FetchConfig returns the bridge's full configuration snapshot.
func (c *Client) FetchConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.do(ctx, http.MethodGet, c.url(""), nil, &cfg); err != nil {
		return nil, fmt.Errorf("fetching bridge config: %w", err)
	}
	return &cfg, nil
}

// LightState returns the full document for one light.
func (c *Client) LightState(ctx context.Context, id string) (*TargetState, error) {
	var ts TargetState
	if err := c.do(ctx, http.MethodGet, c.url("/lights/"+id), nil, &ts); err != nil {
		return nil, fmt.Errorf("fetching light %s: %w", id, err)
	}
	return &ts, nil
}

// GroupState returns the full document for one group.
func (c *Client) GroupState(ctx context.Context, id string) (*TargetState, error) {
	var ts TargetState
	if err := c.do(ctx, http.MethodGet, c.url("/groups/"+id), nil, &ts); err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", id, err)
	}
	return &ts, nil
}

// SetLightState PUTs a state delta to a light. The caller must not pass an
// empty delta; no-op writes are skipped one layer up.
func (c *Client) SetLightState(ctx context.Context, id string, state *State) (Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPut, c.url("/lights/"+id+"/state"), state, &res); err != nil {
		return nil, fmt.Errorf("setting light %s state: %w", id, err)
	}
	return res, nil
}

// SetGroupAction PUTs a state delta to a group's action endpoint.
func (c *Client) SetGroupAction(ctx context.Context, id string, state *State) (Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPut, c.url("/groups/"+id+"/action"), state, &res); err != nil {
		return nil, fmt.Errorf("setting group %s action: %w", id, err)
	}
	return res, nil
}

// CreateGroup creates a new group and returns the bridge result, which
// carries the assigned id on success.
func (c *Client) CreateGroup(ctx context.Context, attrs *GroupAttrs) (Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, c.url("/groups"), attrs, &res); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return res, nil
}

// UpdateGroup updates the attributes of an existing group.
func (c *Client) UpdateGroup(ctx context.Context, id string, attrs *GroupAttrs) (Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPut, c.url("/groups/"+id), attrs, &res); err != nil {
		return nil, fmt.Errorf("updating group %s: %w", id, err)
	}
	return res, nil
}

// DeleteGroup removes a group from the bridge.
func (c *Client) DeleteGroup(ctx context.Context, id string) (Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodDelete, c.url("/groups/"+id), nil, &res); err != nil {
		return nil, fmt.Errorf("deleting group %s: %w", id, err)
	}
	return res, nil
}

// SearchLights starts a scan for the given serial numbers. The API caps a
// single call at 10 serials; chunking longer lists is the caller's job.
func (c *Client) SearchLights(ctx context.Context, serials []string) (Result, error) {
	body := map[string][]string{"deviceid": serials}
	var res Result
	if err := c.do(ctx, http.MethodPost, c.url("/lights"), body, &res); err != nil {
		return nil, fmt.Errorf("searching for lights: %w", err)
	}
	return res, nil
}

// NewLights returns the current scan status and any lights found so far.
func (c *Client) NewLights(ctx context.Context) (*ScanStatus, error) {
	var status ScanStatus
	if err := c.do(ctx, http.MethodGet, c.url("/lights/new"), nil, &status); err != nil {
		return nil, fmt.Errorf("fetching scan status: %w", err)
	}
	return &status, nil
}

// WaitForScan polls the scan status once per second until the bridge
// reports the scan finished, returning ErrScanTimeout when the budget
// elapses first.
func (c *Client) WaitForScan(ctx context.Context, timeout time.Duration) (*ScanStatus, error) {
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(c.scanPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.NewLights(ctx)
		if err != nil {
			return nil, err
		}
		if !status.Active() {
			return status, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrScanTimeout
		}

		log.Debug().Str("bridge", c.address).Msg("Scan still active, waiting")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Register creates the derived username on the bridge. The link button
// must have been pressed recently or the bridge answers with error 101.
func (c *Client) Register(ctx context.Context) (Result, error) {
	body := map[string]string{
		"devicetype": DeviceType,
		"username":   c.token,
	}
	var res Result
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("http://%s/api", c.address), body, &res); err != nil {
		return nil, fmt.Errorf("registering with bridge: %w", err)
	}
	return res, nil
}
