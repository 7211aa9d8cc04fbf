package perturbation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/regiorail/horaires/internal/route"
)

// Fingerprint returns an 8-hex-digit FNV-1a hash of the canonical form of o.
// Logically equal overrides always share a fingerprint. Not cryptographic.
func Fingerprint(o Override) (string, error) {
	canon, err := canonical(o)
	if err != nil {
		return "", err
	}
	text, err := canonicalJSON(canon)
	if err != nil {
		return "", err
	}
	h := fnv.New32a()
	h.Write(text)
	return fmt.Sprintf("%08x", h.Sum32()), nil
}

// canonical keeps only the fields relevant to the variant
func canonical(o Override) (map[string]interface{}, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	switch o.Kind {
	case KindDelay:
		return map[string]interface{}{
			"type":          string(KindDelay),
			"from_station":  route.StationKey(o.Delay.FromStation),
			"delay_minutes": o.Delay.Minutes,
		}, nil
	case KindCancel:
		return map[string]interface{}{
			"type":      string(KindCancel),
			"cancelled": true,
		}, nil
	default:
		stops := make([]interface{}, 0, len(o.Reroute.Stops))
		for _, s := range o.Reroute.Stops {
			stops = append(stops, map[string]interface{}{
				"station":   route.StationKey(s.StationName),
				"arrival":   s.ArrivalTime,
				"departure": s.DepartureTime,
			})
		}
		return map[string]interface{}{
			"type":      string(KindReroute),
			"departure": route.StationKey(o.Reroute.Departure),
			"arrival":   route.StationKey(o.Reroute.Arrival),
			"stops":     stops,
		}, nil
	}
}

// canonicalJSON writes compact JSON. encoding/json emits map keys sorted at
// every nesting level and keeps array order.
func canonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode override: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
