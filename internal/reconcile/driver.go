package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
)

// Report is the aggregate outcome of one reconciliation run. States holds
// the last-read document for every requested target, failed ones
// included, so the caller always sees what the bridge reported.
type Report struct {
	Changed bool                           `json:"changed"`
	Failed  bool                           `json:"failed,omitempty"`
	Msg     string                         `json:"msg,omitempty"`
	States  map[string]*bridge.TargetState `json:"states"`
}

// Driver runs one reconciliation: resolve the target, read its state,
// build the delta, apply it unless nothing changed or check mode is on,
// and read back the final state.
type Driver struct {
	Client *bridge.Client
	Check  bool // report the would-be change without writing
}

// Run reconciles the referenced target against the requested parameters.
// Resolution and validation failures return an error and write nothing;
// per-target apply failures are recorded in the report instead so the
// gathered state survives.
func (d *Driver) Run(ctx context.Context, ref Ref, params Params) (*Report, error) {
	cfg, err := d.Client.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}

	target, err := Resolve(ref, cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{States: make(map[string]*bridge.TargetState)}

	current, err := d.fetchState(ctx, target)
	if err != nil {
		return nil, err
	}
	report.States[target.String()] = current

	if !current.Reachable() {
		log.Warn().Str("target", target.String()).Msg("Target is not reachable, skipping write")
		report.Failed = true
		report.Msg = fmt.Sprintf("the light or group %q is not reachable", ref)
		return report, nil
	}

	changed, delta, err := BuildState(params, current.Current())
	if err != nil {
		return nil, err
	}
	report.Changed = changed

	if changed && !d.Check {
		res, err := d.applyState(ctx, target, delta)
		if err != nil {
			return nil, err
		}
		if apiErr := res.FirstError(); apiErr != nil {
			report.Failed = true
			report.Msg = fmt.Sprintf("the light or group %q failed to update: %v", ref, apiErr)
		} else {
			log.Info().Str("target", target.String()).Msg("State applied")
		}
	} else {
		log.Debug().
			Str("target", target.String()).
			Bool("changed", changed).
			Bool("check", d.Check).
			Msg("Skipping write")
	}

	final, err := d.fetchState(ctx, target)
	if err != nil {
		return nil, err
	}
	report.States[target.String()] = final

	return report, nil
}

func (d *Driver) fetchState(ctx context.Context, t Target) (*bridge.TargetState, error) {
	if t.Kind == KindGroup {
		return d.Client.GroupState(ctx, t.ID)
	}
	return d.Client.LightState(ctx, t.ID)
}

func (d *Driver) applyState(ctx context.Context, t Target, delta *bridge.State) (bridge.Result, error) {
	if t.Kind == KindGroup {
		return d.Client.SetGroupAction(ctx, t.ID, delta)
	}
	return d.Client.SetLightState(ctx, t.ID, delta)
}
