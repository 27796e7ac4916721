// Package scan drives the bridge's new-light search: start a scan for the
// requested serial numbers, wait for it to finish, and report the bridge
// configuration afterwards so the caller sees any lights it picked up.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
)

// maxSerialsPerSearch is the API's documented cap on serial numbers in a
// single search call. Longer lists are split into multiple calls here.
const maxSerialsPerSearch = 10

// DefaultTimeout bounds the wait for a scan to complete.
const DefaultTimeout = 120 * time.Second

// Report is the outcome of one scan run.
type Report struct {
	Changed bool              `json:"changed"`
	Msg     string            `json:"msg,omitempty"`
	Found   map[string]string `json:"found,omitempty"` // light id -> name
	Config  *bridge.Config    `json:"config,omitempty"`
}

// Run starts a search for the given serial numbers, waits for the bridge
// to finish scanning, and returns the post-scan view. An empty serial
// list still runs a single open-ended search.
func Run(ctx context.Context, client *bridge.Client, serials []string, timeout time.Duration) (*Report, error) {
	if _, err := client.FetchConfig(ctx); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	for _, batch := range chunk(serials, maxSerialsPerSearch) {
		res, err := client.SearchLights(ctx, batch)
		if err != nil {
			return nil, err
		}
		if apiErr := res.FirstError(); apiErr != nil {
			return nil, fmt.Errorf("failed to initiate the search for new lights: %w", apiErr)
		}
		log.Debug().Int("serials", len(batch)).Msg("Search batch accepted")
	}

	status, err := client.WaitForScan(ctx, timeout)
	if err != nil {
		return nil, err
	}
	log.Info().Int("found", len(status.Lights)).Str("lastscan", status.LastScan).Msg("Scan completed")

	cfg, err := client.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		Changed: true,
		Msg:     "search completed successfully",
		Found:   status.Lights,
		Config:  cfg,
	}, nil
}

// chunk splits the serial list into batches of at most size. A nil or
// empty list yields one empty batch so a bare scan still runs.
func chunk(serials []string, size int) [][]string {
	if len(serials) == 0 {
		return [][]string{nil}
	}
	var batches [][]string
	for len(serials) > size {
		batches = append(batches, serials[:size])
		serials = serials[size:]
	}
	return append(batches, serials)
}
