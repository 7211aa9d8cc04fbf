package perturbation

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex8 = regexp.MustCompile(`^[0-9a-f]{8}$`)

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func fingerprintOf(t *testing.T, payload string) string {
	t.Helper()
	o, err := ParseOverride(decode(t, payload))
	require.NoError(t, err)
	fp, err := Fingerprint(o)
	require.NoError(t, err)
	return fp
}

func TestFingerprintKeyOrderInvariant(t *testing.T) {
	pairs := [][2]string{
		{
			`{"type":"delay","from_station":"Metz","delay_minutes":15}`,
			`{"delay_minutes":15,"from_station":"Metz","type":"delay"}`,
		},
		{
			`{"type":"cancel"}`,
			`{"cause":"grève","type":"suppression"}`,
		},
		{
			`{"type":"reroute","departure":"Nancy","arrival":"Metz","stops":[{"station":"Nancy","departure":"7:00"},{"arrival":"7:40","station":"Metz"}]}`,
			`{"stops":[{"departure":"07:00","station":"Nancy"},{"station":"Metz","arrival":"07:40"}],"arrival":"Metz","departure":"Nancy","type":"modification"}`,
		},
	}

	for _, p := range pairs {
		a := fingerprintOf(t, p[0])
		b := fingerprintOf(t, p[1])
		assert.Regexp(t, hex8, a)
		assert.Equal(t, a, b, "%s vs %s", p[0], p[1])
	}
}

func TestFingerprintChangesWithMeaningfulFields(t *testing.T) {
	base := fingerprintOf(t, `{"type":"delay","from_station":"Metz","delay_minutes":15}`)

	changed := []string{
		`{"type":"delay","from_station":"Metz","delay_minutes":16}`,
		`{"type":"delay","from_station":"Thionville","delay_minutes":15}`,
		`{"type":"cancel"}`,
	}
	for _, c := range changed {
		assert.NotEqual(t, base, fingerprintOf(t, c), c)
	}

	reroute := fingerprintOf(t, `{"type":"reroute","stops":[{"station":"A"},{"station":"B"}]}`)
	swapped := fingerprintOf(t, `{"type":"reroute","stops":[{"station":"B"},{"station":"A"}]}`)
	assert.NotEqual(t, reroute, swapped, "stop order is meaningful")
}

func TestFingerprintIgnoresPresentationFields(t *testing.T) {
	a := fingerprintOf(t, `{"type":"delay","from_station":"Sélestat","delay_minutes":5,"message":"a"}`)
	b := fingerprintOf(t, `{"type":"retard","from_station":"SELESTAT","delay_minutes":"5","message":"b"}`)
	assert.Equal(t, a, b)
}

func TestFingerprintKnownValue(t *testing.T) {
	// FNV-1a 32 of {"cancelled":true,"type":"cancel"}
	fp, err := Fingerprint(Override{Kind: KindCancel})
	require.NoError(t, err)

	text, err := canonicalJSON(map[string]interface{}{"type": "cancel", "cancelled": true})
	require.NoError(t, err)
	assert.Equal(t, `{"cancelled":true,"type":"cancel"}`, string(text))

	var h uint32 = 2166136261
	for _, c := range text {
		h ^= uint32(c)
		h *= 16777619
	}
	assert.Equal(t, fmtHex(h), fp)
}

func fmtHex(h uint32) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = digits[h&0xf]
		h >>= 4
	}
	return string(out)
}

func TestFingerprintRejectsUntagged(t *testing.T) {
	_, err := Fingerprint(Override{})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Fingerprint(Override{Kind: KindDelay})
	assert.ErrorIs(t, err, ErrInvalidOverride)
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
		check   func(t *testing.T, o Override)
	}{
		{
			name:    "missing tag",
			payload: `{"delay_minutes":5}`,
			wantErr: ErrUnknownKind,
		},
		{
			name:    "unknown tag",
			payload: `{"type":"strike"}`,
			wantErr: ErrUnknownKind,
		},
		{
			name:    "negative delay",
			payload: `{"type":"delay","delay_minutes":-3}`,
			wantErr: ErrInvalidOverride,
		},
		{
			name:    "fractional delay",
			payload: `{"type":"delay","delay_minutes":2.5}`,
			wantErr: ErrInvalidOverride,
		},
		{
			name:    "delay defaults to zero minutes",
			payload: `{"type":"retard","from":"Metz"}`,
			check: func(t *testing.T, o Override) {
				require.NotNil(t, o.Delay)
				assert.Equal(t, 0, o.Delay.Minutes)
				assert.Equal(t, "Metz", o.Delay.FromStation)
			},
		},
		{
			name:    "empty reroute",
			payload: `{"type":"reroute"}`,
			wantErr: ErrInvalidOverride,
		},
		{
			name:    "reroute with departure only",
			payload: `{"type":"modification","gare_depart":"Nancy","arrets":[{"nom":""}]}`,
			wantErr: ErrInvalidOverride,
		},
		{
			name:    "reroute by endpoints",
			payload: `{"type":"reroute","departure":"Nancy","arrival":"Metz"}`,
			check: func(t *testing.T, o Override) {
				require.NotNil(t, o.Reroute)
				assert.Empty(t, o.Reroute.Stops)
				assert.Equal(t, "Metz", o.Reroute.Arrival)
			},
		},
		{
			name:    "reroute normalises stops",
			payload: `{"type":"reroute","gare_depart":"Nancy","arrets":[{"gare":"Nancy","depart":"7:5"},{"nom":""},{"station":"Metz","arrival":"7:40"}]}`,
			check: func(t *testing.T, o Override) {
				require.NotNil(t, o.Reroute)
				assert.Equal(t, "Nancy", o.Reroute.Departure)
				require.Len(t, o.Reroute.Stops, 2)
				assert.Nil(t, o.Reroute.Stops[0].DepartureTime)
				assert.Equal(t, "07:40", *o.Reroute.Stops[1].ArrivalTime)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := ParseOverride(decode(t, tc.payload))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, o)
		})
	}
}
