// Package group reconciles the lifecycle of a Hue light group: present
// (create or update to match the requested attributes) or absent
// (delete). Change detection works the same way as light state: only the
// canonical attribute set is compared, and nothing is written when the
// bridge already matches.
package group

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jimi-c/hue/internal/bridge"
)

// State is the requested lifecycle state of a group.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Types is the set of group types the bridge accepts. LightGroup and Room
// are functionally equivalent except that only LightGroups may be created
// empty. Values are case-sensitive on the bridge.
var Types = []string{"Luminaire", "Lightsource", "LightGroup", "Room"}

// Classes is the set of room classes the bridge accepts, case-sensitive.
var Classes = []string{
	"Living room", "Kitchen", "Dining", "Bedroom", "Kids bedroom", "Bathroom",
	"Nursery", "Recreation", "Office", "Gym", "Hallway", "Toilet", "Front door",
	"Garage", "Terrace", "Garden", "Driveway", "Carport", "Other",
}

// Params describes the desired group. Exactly one of ID and Name
// addresses the group; ID accepts both the gX and bare X forms.
type Params struct {
	ID     string
	Name   string
	State  State
	Lights []string // member light ids, lX or bare X form
	Type   string   // defaults to LightGroup
	Class  string   // defaults to Other
}

// InvalidParamError reports a group parameter outside its allowed set.
type InvalidParamError struct {
	Field string
	Value string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid group %s: %q", e.Field, e.Value)
}

// Report is the outcome of one group reconciliation.
type Report struct {
	Changed bool                `json:"changed"`
	Msg     string              `json:"msg,omitempty"`
	Group   *bridge.TargetState `json:"group,omitempty"`
}

var groupIDRe = regexp.MustCompile(`^g?([0-9]+)$`)

// attrsChanged compares over the attribute set eligible for change
// detection (name, lights, type, class). Anything else the bridge
// reports is ignored.
func attrsChanged(attrs *bridge.GroupAttrs, current *bridge.GroupInfo) bool {
	if current == nil {
		return true
	}
	if attrs.Name != "" && attrs.Name != current.Name {
		return true
	}
	if attrs.Type != "" && attrs.Type != current.Type {
		return true
	}
	if attrs.Class != "" && attrs.Class != current.Class {
		return true
	}
	if attrs.Lights != nil && !lightsEqual(attrs.Lights, current.Lights) {
		return true
	}
	return false
}

func lightsEqual(a, b []string) bool {
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

// BuildAttrs validates the parameters and produces the attribute object
// to send, plus whether it differs from the group's current attributes.
// Light references are normalized to the bare numeric ids the API wants.
func BuildAttrs(p Params, current *bridge.GroupInfo) (changed bool, attrs *bridge.GroupAttrs, err error) {
	attrs = &bridge.GroupAttrs{Name: p.Name}

	if p.Type != "" {
		if !contains(Types, p.Type) {
			return false, nil, &InvalidParamError{Field: "type", Value: p.Type}
		}
		attrs.Type = p.Type
	}
	if p.Class != "" {
		if !contains(Classes, p.Class) {
			return false, nil, &InvalidParamError{Field: "class", Value: p.Class}
		}
		attrs.Class = p.Class
	}

	if p.Lights != nil {
		lights := make([]string, 0, len(p.Lights))
		for _, light := range p.Lights {
			id := strings.TrimPrefix(light, "l")
			if id == "" || strings.Trim(id, "0123456789") != "" {
				return false, nil, &InvalidParamError{Field: "light id", Value: light}
			}
			lights = append(lights, id)
		}
		attrs.Lights = lights
	}

	return attrsChanged(attrs, current), attrs, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// resolve finds the addressed group in the bridge config. A nil info with
// no error means the group does not exist yet.
func resolve(p Params, cfg *bridge.Config) (id string, info *bridge.GroupInfo, err error) {
	if p.ID != "" {
		m := groupIDRe.FindStringSubmatch(p.ID)
		if m == nil {
			return "", nil, &InvalidParamError{Field: "id", Value: p.ID}
		}
		id = m[1]
		if g, ok := cfg.Groups[id]; ok {
			return id, &g, nil
		}
		return id, nil, nil
	}

	for gid, g := range cfg.Groups {
		if g.Name == p.Name {
			g := g
			return gid, &g, nil
		}
	}
	return "", nil, nil
}

// Run reconciles the group to the requested lifecycle state.
func Run(ctx context.Context, client *bridge.Client, p Params) (*Report, error) {
	cfg, err := client.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}

	id, info, err := resolve(p, cfg)
	if err != nil {
		return nil, err
	}

	switch p.State {
	case StateAbsent:
		return runAbsent(ctx, client, p, id, info)
	case StatePresent, "":
		return runPresent(ctx, client, p, id, info)
	default:
		return nil, &InvalidParamError{Field: "state", Value: string(p.State)}
	}
}

func runAbsent(ctx context.Context, client *bridge.Client, p Params, id string, info *bridge.GroupInfo) (*Report, error) {
	if info == nil {
		return &Report{Msg: "the specified group id or name was not found"}, nil
	}

	res, err := client.DeleteGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if apiErr := res.FirstError(); apiErr != nil {
		return nil, fmt.Errorf("failed to remove group %q: %w", ref(p), apiErr)
	}

	log.Info().Str("group", id).Msg("Group removed")
	return &Report{Changed: true, Msg: "the specified group was removed successfully"}, nil
}

func runPresent(ctx context.Context, client *bridge.Client, p Params, id string, info *bridge.GroupInfo) (*Report, error) {
	if info == nil && p.ID != "" && p.Name == "" {
		return nil, fmt.Errorf("group %q was not found and no name was specified for creation", p.ID)
	}

	changed, attrs, err := BuildAttrs(p, info)
	if err != nil {
		return nil, err
	}

	if info == nil {
		if attrs.Lights == nil {
			return nil, fmt.Errorf("lights must be specified when creating a new group")
		}
		res, err := client.CreateGroup(ctx, attrs)
		if err != nil {
			return nil, err
		}
		if apiErr := res.FirstError(); apiErr != nil {
			return nil, fmt.Errorf("failed to create group %q: %w", ref(p), apiErr)
		}
		id = res.CreatedID()
		log.Info().Str("group", id).Str("name", p.Name).Msg("Group created")
	} else if changed {
		res, err := client.UpdateGroup(ctx, id, attrs)
		if err != nil {
			return nil, err
		}
		if apiErr := res.FirstError(); apiErr != nil {
			return nil, fmt.Errorf("failed to update group %q: %w", ref(p), apiErr)
		}
		log.Info().Str("group", id).Msg("Group updated")
	} else {
		log.Debug().Str("group", id).Msg("Group already matches, nothing to do")
	}

	final, err := client.GroupState(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Report{Changed: changed, Group: final}, nil
}

func ref(p Params) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}
