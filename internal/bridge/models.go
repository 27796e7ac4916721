package bridge

import (
	"encoding/json"
	"fmt"
)

// State is the v1 API state object: the "state" sub-document of a light or
// the "action" sub-document of a group. Fields are pointers so that a
// sparse delta marshals only what the caller set; the same type carries
// bridge-reported state on reads.
type State struct {
	On             *bool     `json:"on,omitempty"`
	Bri            *uint8    `json:"bri,omitempty"`
	Hue            *uint16   `json:"hue,omitempty"`
	Sat            *uint8    `json:"sat,omitempty"`
	XY             []float64 `json:"xy,omitempty"`
	Ct             *uint16   `json:"ct,omitempty"`
	Alert          *string   `json:"alert,omitempty"`
	Effect         *string   `json:"effect,omitempty"`
	TransitionTime *uint16   `json:"transitiontime,omitempty"`
	ColorMode      string    `json:"colormode,omitempty"`
	Reachable      *bool     `json:"reachable,omitempty"`
}

// Empty reports whether no field is set.
func (s *State) Empty() bool {
	return s == nil || (s.On == nil && s.Bri == nil && s.Hue == nil && s.Sat == nil &&
		s.XY == nil && s.Ct == nil && s.Alert == nil && s.Effect == nil &&
		s.TransitionTime == nil)
}

// LightInfo is one light's entry in the bridge configuration.
type LightInfo struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	Type      string `json:"type,omitempty"`
	ModelID   string `json:"modelid,omitempty"`
	UniqueID  string `json:"uniqueid,omitempty"`
	SwVersion string `json:"swversion,omitempty"`
}

// GroupInfo is one group's entry in the bridge configuration.
type GroupInfo struct {
	Name   string   `json:"name"`
	Action State    `json:"action"`
	Lights []string `json:"lights"`
	Type   string   `json:"type,omitempty"`
	Class  string   `json:"class,omitempty"`
}

// Config is the bridge's full configuration snapshot, keyed by resource id.
// It is re-fetched on demand and never cached across invocations; the
// bridge stays the sole source of truth.
type Config struct {
	Lights map[string]LightInfo `json:"lights"`
	Groups map[string]GroupInfo `json:"groups"`
}

// TargetState is the full document the bridge returns for a single light
// or group. Exactly one of State/Action is populated depending on the
// resource kind.
type TargetState struct {
	Name     string   `json:"name,omitempty"`
	State    *State   `json:"state,omitempty"`
	Action   *State   `json:"action,omitempty"`
	Lights   []string `json:"lights,omitempty"`
	Type     string   `json:"type,omitempty"`
	Class    string   `json:"class,omitempty"`
	ModelID  string   `json:"modelid,omitempty"`
	UniqueID string   `json:"uniqueid,omitempty"`
}

// Current returns the state sub-document for the resource kind: "state"
// for lights, "action" for groups. Never nil.
func (ts *TargetState) Current() *State {
	switch {
	case ts == nil:
		return &State{}
	case ts.State != nil:
		return ts.State
	case ts.Action != nil:
		return ts.Action
	}
	return &State{}
}

// Reachable reports the bridge-side reachability flag. Documents that omit
// the flag (groups, older firmware) count as reachable.
func (ts *TargetState) Reachable() bool {
	if ts != nil && ts.State != nil && ts.State.Reachable != nil {
		return *ts.State.Reachable
	}
	return true
}

// APIError is the error payload the bridge attaches to a failed API call.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge error %d at %q: %s", e.Type, e.Address, e.Description)
}

// Error type 1 is "unauthorized user": the token is not registered.
const errTypeUnauthorized = 1

// Item is one element of the per-item result array the bridge returns for
// write operations.
type Item struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}

// Result is the bridge's write response: an array of per-item outcomes.
type Result []Item

// OK reports whether the write succeeded: true iff no item carries an
// error entry.
func (r Result) OK() bool {
	return r.FirstError() == nil
}

// FirstError returns the first error item in the result, or nil.
func (r Result) FirstError() *APIError {
	for _, item := range r {
		if item.Error != nil {
			return item.Error
		}
	}
	return nil
}

// CreatedID extracts the new resource id from a create response
// ([{"success": {"id": "2"}}]). Empty when the result carries none.
func (r Result) CreatedID() string {
	for _, item := range r {
		if item.Success == nil {
			continue
		}
		if id, ok := item.Success["id"].(string); ok {
			return id
		}
	}
	return ""
}

// ScanStatus is the GET /lights/new document: the lastscan marker plus any
// lights found by the most recent search. The bridge mixes the marker and
// the light entries into one object, so decoding is by hand.
type ScanStatus struct {
	LastScan string
	Lights   map[string]string // id -> name
}

// Active reports whether a scan is still in progress.
func (s *ScanStatus) Active() bool {
	return s != nil && s.LastScan == "active"
}

// UnmarshalJSON implements json.Unmarshaler for the mixed-key document.
func (s *ScanStatus) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Lights = make(map[string]string)
	for key, value := range raw {
		if key == "lastscan" {
			if err := json.Unmarshal(value, &s.LastScan); err != nil {
				return err
			}
			continue
		}
		var entry struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("malformed scan entry %q: %w", key, err)
		}
		s.Lights[key] = entry.Name
	}
	return nil
}

// GroupAttrs are the writable group attributes for create and update calls.
type GroupAttrs struct {
	Name   string   `json:"name,omitempty"`
	Lights []string `json:"lights,omitempty"`
	Type   string   `json:"type,omitempty"`
	Class  string   `json:"class,omitempty"`
}
