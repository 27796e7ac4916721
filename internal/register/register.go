// Package register creates the host-derived API username on the bridge.
// Registration needs the bridge's link button pressed, so the attempt is
// retried a bounded number of times with a fixed delay between tries,
// giving the operator a window to walk over and press it.
package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
)

const (
	// DefaultRetries is how many times a failed registration is retried.
	DefaultRetries = 6
	// DefaultRetryDelay is the fixed wait between attempts.
	DefaultRetryDelay = 5 * time.Second
)

// Report is the outcome of one registration run.
type Report struct {
	Changed bool           `json:"changed"`
	Msg     string         `json:"msg,omitempty"`
	Config  *bridge.Config `json:"config,omitempty"`
}

// Run probes the bridge with the derived token and registers it when the
// bridge does not know it yet. Retries are bounded and evenly spaced,
// never backed off. retries counts retries after the first attempt, so
// retries=6 means up to 7 tries.
func Run(ctx context.Context, client *bridge.Client, retries int, delay time.Duration) (*Report, error) {
	cfg, err := client.FetchConfig(ctx)
	if err == nil {
		return &Report{Msg: "already registered", Config: cfg}, nil
	}
	if !errors.Is(err, bridge.ErrUnauthorized) {
		return nil, err
	}

	log.Info().Str("bridge", client.Address()).Int("retries", retries).
		Msg("Token not registered, press the bridge link button")

	for attempt := 0; attempt <= retries; attempt++ {
		res, err := client.Register(ctx)
		if err == nil && res.OK() {
			cfg, err := client.FetchConfig(ctx)
			if err != nil {
				return nil, err
			}
			log.Info().Str("bridge", client.Address()).Msg("Registration successful")
			return &Report{Changed: true, Msg: "bridge registration successful", Config: cfg}, nil
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("Registration attempt failed")
		} else {
			log.Warn().Err(res.FirstError()).Int("attempt", attempt+1).Msg("Bridge rejected registration")
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to register with the bridge at %s after %d attempts", client.Address(), retries+1)
}
