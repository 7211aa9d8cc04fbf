package perturbation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/regiorail/horaires/internal/route"
)

// MaxDelayMinutes bounds a single delay to one day
const MaxDelayMinutes = 1440

var (
	// ErrUnknownKind is returned for overrides without a recognised type tag
	ErrUnknownKind = errors.New("unknown override type")
	// ErrInvalidOverride is returned for a tagged override with unusable fields
	ErrInvalidOverride = errors.New("invalid override")
)

// Kind tags the Override variant
type Kind string

const (
	KindDelay   Kind = "delay"
	KindCancel  Kind = "cancel"
	KindReroute Kind = "reroute"
)

var kindAliases = map[string]Kind{
	"delay":        KindDelay,
	"retard":       KindDelay,
	"cancel":       KindCancel,
	"cancellation": KindCancel,
	"suppression":  KindCancel,
	"reroute":      KindReroute,
	"modification": KindReroute,
}

// ParseKind maps a type tag, including the French admin labels, to a Kind
func ParseKind(tag string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, tag)
	}
	return k, nil
}

// Classification is the public label of a perturbed occurrence
func (k Kind) Classification() string {
	switch k {
	case KindDelay:
		return "delay"
	case KindCancel:
		return "cancellation"
	case KindReroute:
		return "modification"
	default:
		return ""
	}
}

// Delay carries the delay variant
type Delay struct {
	FromStation string `json:"from_station"`
	Minutes     int    `json:"delay_minutes"`
}

// Reroute carries the replacement stop sequence for one date
type Reroute struct {
	Departure string       `json:"departure"`
	Arrival   string       `json:"arrival"`
	Stops     []route.Stop `json:"stops"`
}

// Override is a daily exception applied to one occurrence. Exactly the
// payload matching Kind is set.
type Override struct {
	Kind    Kind     `json:"type"`
	Delay   *Delay   `json:"delay,omitempty"`
	Reroute *Reroute `json:"reroute,omitempty"`
}

// Validate checks the variant payload against the tag
func (o Override) Validate() error {
	switch o.Kind {
	case KindDelay:
		if o.Delay == nil {
			return fmt.Errorf("%w: delay without payload", ErrInvalidOverride)
		}
		if o.Delay.Minutes < 0 || o.Delay.Minutes > MaxDelayMinutes {
			return fmt.Errorf("%w: delay of %d minutes", ErrInvalidOverride, o.Delay.Minutes)
		}
	case KindCancel:
	case KindReroute:
		if o.Reroute == nil {
			return fmt.Errorf("%w: reroute without payload", ErrInvalidOverride)
		}
		if len(o.Reroute.Stops) == 0 && (o.Reroute.Departure == "" || o.Reroute.Arrival == "") {
			return fmt.Errorf("%w: reroute needs stops or a departure and an arrival", ErrInvalidOverride)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, o.Kind)
	}
	return nil
}

// rawField reads the first present key
func rawField(raw map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func rawString(raw map[string]interface{}, keys ...string) string {
	v, ok := rawField(raw, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func rawInt(raw map[string]interface{}, keys ...string) (int, bool, error) {
	v, ok := rawField(raw, keys...)
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, true, fmt.Errorf("%w: non-integer minutes %v", ErrInvalidOverride, val)
		}
		return int(val), true, nil
	case int:
		return val, true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, true, fmt.Errorf("%w: minutes %q", ErrInvalidOverride, val)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("%w: minutes of type %T", ErrInvalidOverride, v)
}

// ParseOverride builds an Override from a decoded admin payload.
// Reroute stops are normalised; delay minutes default to 0.
func ParseOverride(raw map[string]interface{}) (Override, error) {
	kind, err := ParseKind(rawString(raw, "type", "kind", "type_perturbation"))
	if err != nil {
		return Override{}, err
	}

	o := Override{Kind: kind}
	switch kind {
	case KindDelay:
		minutes, _, err := rawInt(raw, "delay_minutes", "retard_minutes", "minutes")
		if err != nil {
			return Override{}, err
		}
		o.Delay = &Delay{
			FromStation: rawString(raw, "from_station", "gare_depart_retard", "from"),
			Minutes:     minutes,
		}
	case KindReroute:
		o.Reroute = &Reroute{
			Departure: rawString(raw, "departure", "gare_depart"),
			Arrival:   rawString(raw, "arrival", "gare_arrivee"),
			Stops:     route.NormalizeStops(rawStops(raw)),
		}
	}

	if err := o.Validate(); err != nil {
		return Override{}, err
	}
	return o, nil
}

func rawStops(raw map[string]interface{}) []route.RawStop {
	v, ok := rawField(raw, "stops", "arrets")
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	stops := make([]route.RawStop, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			stops = append(stops, route.RawStop(m))
		}
	}
	return stops
}
