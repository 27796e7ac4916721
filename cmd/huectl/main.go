// huectl runs one idempotent configuration operation against a Hue
// bridge: state, group, scan or register. The operation's parameters come
// from a YAML task file; the JSON report goes to stdout and logs to
// stderr, so the report stays machine-readable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
	"github.com/jimi-c/hue/internal/config"
	"github.com/jimi-c/hue/internal/reconcile"
	"github.com/jimi-c/hue/internal/reconcile/group"
	"github.com/jimi-c/hue/internal/register"
	"github.com/jimi-c/hue/internal/scan"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: huectl [flags] <operation>

Operations:
  state     reconcile light or group state
  group     create, update or remove a light group
  scan      search for new lights
  register  register this host's token with the bridge

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "task.yaml", "Path to the task file")
	flag.StringVar(&configPath, "c", "task.yaml", "Path to the task file (shorthand)")
	bridgeAddr := flag.String("bridge", "", "Bridge address (overrides the task file)")
	check := flag.Bool("check", false, "Report what would change without writing")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	op := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load task file")
	}
	if *bridgeAddr != "" {
		cfg.Bridge.Address = *bridgeAddr
	}

	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)
	log.Logger = log.With().Str("run_id", uuid.NewString()).Logger()

	client := bridge.NewClient(cfg.Bridge.Address, bridge.Options{
		Token:        cfg.Bridge.Token,
		Timeout:      cfg.Bridge.Timeout.Duration(),
		RateLimitRPS: cfg.Bridge.RateLimitRPS,
	})
	log.Info().Str("op", op).Str("bridge", cfg.Bridge.Address).Msg("Starting huectl")

	ctx := context.Background()

	var report any
	var failed bool
	switch op {
	case "state":
		driver := &reconcile.Driver{Client: client, Check: *check}
		r, err := driver.Run(ctx, cfg.State.Ref(), cfg.State.Params())
		if err != nil {
			log.Fatal().Err(err).Msg("State reconciliation failed")
		}
		report, failed = r, r.Failed

	case "group":
		r, err := group.Run(ctx, client, cfg.Group.Params())
		if err != nil {
			log.Fatal().Err(err).Msg("Group reconciliation failed")
		}
		report = r

	case "scan":
		r, err := scan.Run(ctx, client, cfg.Scan.SerialNumbers, cfg.Scan.Timeout.Duration())
		if err != nil {
			log.Fatal().Err(err).Msg("Light scan failed")
		}
		report = r

	case "register":
		r, err := register.Run(ctx, client, cfg.Register.Retries, cfg.Register.RetryTime.Duration())
		if err != nil {
			log.Fatal().Err(err).Msg("Registration failed")
		}
		report = r

	default:
		log.Error().Str("op", op).Msg("Unknown operation")
		usage()
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
	if failed {
		os.Exit(1)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
