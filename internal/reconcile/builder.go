package reconcile

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
	"github.com/jimi-c/hue/internal/color"
)

// Params is the caller-requested state for a light or group. Fields are
// pointers so that only what the caller actually set makes it into the
// delta; On defaults to true when left nil.
type Params struct {
	On             *bool
	Brightness     *uint8
	Hue            *uint16
	Saturation     *uint8
	XY             []float64
	ColorTemp      *uint16
	RGB            *string
	Alert          *string
	Effect         *string
	TransitionTime *uint16
}

// InvalidEnumError reports a value outside an enum field's allowed set.
type InvalidEnumError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid %s value %q: must be one of %s",
		e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// InvalidXYError reports an xy pair outside the unit square.
type InvalidXYError struct {
	XY []float64
}

func (e *InvalidXYError) Error() string {
	return fmt.Sprintf("invalid xy value %v: expected two coordinates in [0.0, 1.0]", e.XY)
}

var (
	alertValues  = []string{"none", "select", "lselect"}
	effectValues = []string{"none", "colorloop"}
)

// BuildState computes the delta to send for the requested parameters and
// whether it differs from the bridge's reported state. Exactly one color
// mode makes it into the delta, picked by fixed precedence: hue/sat, then
// rgb (converted to xy), then a literal xy pair, then color temperature.
// All validation happens here, before anything touches the network.
func BuildState(p Params, current *bridge.State) (changed bool, delta *bridge.State, err error) {
	if current == nil {
		current = &bridge.State{}
	}
	delta = &bridge.State{}

	on := true
	if p.On != nil {
		on = *p.On
	}
	delta.On = &on

	if p.Brightness != nil {
		delta.Bri = p.Brightness
	}
	if p.TransitionTime != nil {
		delta.TransitionTime = p.TransitionTime
	}

	if p.Alert != nil {
		alert, err := validateEnum("alert", *p.Alert, alertValues)
		if err != nil {
			return false, nil, err
		}
		delta.Alert = &alert
	}
	if p.Effect != nil {
		effect, err := validateEnum("effect", *p.Effect, effectValues)
		if err != nil {
			return false, nil, err
		}
		delta.Effect = &effect
	}

	switch {
	case p.Hue != nil || p.Saturation != nil:
		delta.Hue = p.Hue
		delta.Sat = p.Saturation
	case p.RGB != nil:
		x, y, err := color.HexToXY(*p.RGB)
		if err != nil {
			return false, nil, err
		}
		delta.XY = []float64{x, y}
	case p.XY != nil:
		if err := validateXY(p.XY); err != nil {
			return false, nil, err
		}
		delta.XY = []float64{p.XY[0], p.XY[1]}
	case p.ColorTemp != nil:
		ct := *p.ColorTemp
		if ct < 153 || ct > 500 {
			log.Warn().Uint16("ct", ct).
				Msg("Color temperature is outside the documented 153-500 Mired range")
		}
		delta.Ct = &ct
	}

	return stateChanged(delta, current), delta, nil
}

func validateEnum(field, value string, allowed []string) (string, error) {
	lowered := strings.ToLower(value)
	for _, v := range allowed {
		if lowered == v {
			return lowered, nil
		}
	}
	return "", &InvalidEnumError{Field: field, Value: value, Allowed: allowed}
}

func validateXY(xy []float64) error {
	if len(xy) != 2 {
		return &InvalidXYError{XY: xy}
	}
	for _, v := range xy {
		if v < 0.0 || v > 1.0 {
			return &InvalidXYError{XY: xy}
		}
	}
	return nil
}

// stateChanged compares the delta against the reported state over the
// canonical field set (on, bri, hue, sat, xy, ct, alert, effect). A field
// counts only when the delta carries it; transitiontime is written but
// never compared since the bridge does not report it back.
func stateChanged(delta, current *bridge.State) bool {
	if delta.On != nil && (current.On == nil || *delta.On != *current.On) {
		return true
	}
	if delta.Bri != nil && (current.Bri == nil || *delta.Bri != *current.Bri) {
		return true
	}
	if delta.Hue != nil && (current.Hue == nil || *delta.Hue != *current.Hue) {
		return true
	}
	if delta.Sat != nil && (current.Sat == nil || *delta.Sat != *current.Sat) {
		return true
	}
	if delta.XY != nil && !xyEqual(delta.XY, current.XY) {
		return true
	}
	if delta.Ct != nil && (current.Ct == nil || *delta.Ct != *current.Ct) {
		return true
	}
	if delta.Alert != nil && (current.Alert == nil || *delta.Alert != *current.Alert) {
		return true
	}
	if delta.Effect != nil && (current.Effect == nil || *delta.Effect != *current.Effect) {
		return true
	}
	return false
}

// xyEqual compares coordinates exactly: the delta's xy comes out of the
// same deterministic conversion on every run, so idempotence holds
// without a tolerance, and a tolerance would mask genuine changes.
func xyEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
