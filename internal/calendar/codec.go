package calendar

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/regiorail/horaires/internal/logger"
)

type rawKind int

const (
	kindAbsent rawKind = iota
	kindList
	kindText
	kindNumber
	kindUnsupported
)

// RawMask is one of the stored encodings of a weekly running pattern:
// a list of weekday numbers, a text value, or an integer bitmask.
// The zero value is an absent mask, which never applies.
type RawMask struct {
	kind    rawKind
	list    []string
	text    string
	number  float64
	typeTag string
}

// ListMask builds a list-shaped mask from already stringified elements
func ListMask(items ...string) RawMask {
	return RawMask{kind: kindList, list: items}
}

// TextMask builds a text-shaped mask
func TextMask(s string) RawMask {
	return RawMask{kind: kindText, text: s}
}

// NumberMask builds an integer bitmask, LSB = Monday
func NumberMask(n int64) RawMask {
	return RawMask{kind: kindNumber, number: float64(n)}
}

// RawFromValue classifies a decoded JSON (or SQL) value into a RawMask.
// nil yields the absent mask.
func RawFromValue(v interface{}) RawMask {
	switch val := v.(type) {
	case nil:
		return RawMask{}
	case RawMask:
		return val
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := stringifyElement(item); ok {
				items = append(items, s)
			}
		}
		return ListMask(items...)
	case []string:
		return ListMask(val...)
	case []int:
		items := make([]string, len(val))
		for i, n := range val {
			items[i] = strconv.Itoa(n)
		}
		return ListMask(items...)
	case string:
		return TextMask(val)
	case []byte:
		return TextMask(string(val))
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return NumberMask(n)
		}
		return TextMask(val.String())
	case float64:
		return RawMask{kind: kindNumber, number: val}
	case float32:
		return RawMask{kind: kindNumber, number: float64(val)}
	case int:
		return NumberMask(int64(val))
	case int32:
		return NumberMask(int64(val))
	case int64:
		return NumberMask(val)
	default:
		return RawMask{kind: kindUnsupported, typeTag: fmt.Sprintf("%T", v)}
	}
}

func stringifyElement(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

// Absent reports whether no mask value was found
func (r RawMask) Absent() bool {
	return r.kind == kindAbsent
}

// MaskMetrics receives a signal for every malformed mask the codec absorbs
type MaskMetrics interface {
	MalformedMaskInc()
}

// Codec answers weekday point queries against RawMask values. It never fails:
// malformed values are logged and treated as "does not run".
type Codec struct {
	log     logger.Logger
	metrics MaskMetrics
}

// NewCodec creates a codec reporting malformed values to log. metrics may be nil.
func NewCodec(log logger.Logger, metrics MaskMetrics) *Codec {
	if log == nil {
		log = logger.Nop()
	}
	return &Codec{log: log.With("component", "calendar-codec"), metrics: metrics}
}

// AppliesOn reports whether raw runs on the given Monday-origin weekday index
func (c *Codec) AppliesOn(raw RawMask, weekdayIndex int) bool {
	ok, err := evaluate(raw, weekdayIndex)
	if err != nil {
		c.report(raw, err)
		return false
	}
	return ok
}

// ParseWeeklyMask decodes raw into a canonical WeeklyMask by querying each weekday
func (c *Codec) ParseWeeklyMask(raw RawMask) WeeklyMask {
	var mask WeeklyMask
	for i := 0; i < DaysPerWeek; i++ {
		ok, err := evaluate(raw, i)
		if err != nil {
			c.report(raw, err)
			return 0
		}
		if ok {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Decode is the strict form of ParseWeeklyMask for write paths: a malformed
// value is returned as an error wrapping ErrInvalidMask and is not reported.
func (c *Codec) Decode(raw RawMask) (WeeklyMask, error) {
	var mask WeeklyMask
	for i := 0; i < DaysPerWeek; i++ {
		ok, err := evaluate(raw, i)
		if err != nil {
			return 0, fmt.Errorf("mask %s: %w", raw.describe(), err)
		}
		if ok {
			mask |= 1 << uint(i)
		}
	}
	return mask, nil
}

func (c *Codec) report(raw RawMask, err error) {
	c.log.Warn("Malformed calendar mask treated as not running",
		"raw", raw.describe(),
		"error", err,
	)
	if c.metrics != nil {
		c.metrics.MalformedMaskInc()
	}
}

func (r RawMask) describe() string {
	switch r.kind {
	case kindList:
		return "[" + strings.Join(r.list, ",") + "]"
	case kindText:
		return strconv.Quote(r.text)
	case kindNumber:
		return strconv.FormatFloat(r.number, 'f', -1, 64)
	case kindUnsupported:
		return "<" + r.typeTag + ">"
	default:
		return "<absent>"
	}
}

// evaluate runs the fixed parse order. Each branch gives a definitive answer;
// there is no fall-through between shapes once a shape is recognised.
func evaluate(raw RawMask, weekdayIndex int) (bool, error) {
	if weekdayIndex < 0 || weekdayIndex >= DaysPerWeek {
		return false, fmt.Errorf("weekday index %d out of range", weekdayIndex)
	}
	target := strconv.Itoa(weekdayIndex + 1)

	switch raw.kind {
	case kindAbsent:
		return false, nil
	case kindList:
		return containsToken(raw.list, target), nil
	case kindText:
		return evaluateText(raw.text, weekdayIndex, target)
	case kindNumber:
		if raw.number != math.Trunc(raw.number) {
			return false, fmt.Errorf("%w: non-integer bitmask %v", ErrInvalidMask, raw.number)
		}
		return testBit(int64(raw.number), weekdayIndex)
	default:
		return false, fmt.Errorf("%w: unsupported value type %s", ErrInvalidMask, raw.typeTag)
	}
}

func evaluateText(text string, weekdayIndex int, target string) (bool, error) {
	// the binary week form is exact; padding is not stripped before it
	if isBinaryWeek(text) {
		return text[weekdayIndex] == '1', nil
	}
	s := strings.TrimSpace(text)
	if strings.ContainsAny(s, ";,") {
		tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
		return containsToken(tokens, target), nil
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '7' {
		return s == target, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: unparseable text %q", ErrInvalidMask, text)
	}
	return testBit(n, weekdayIndex)
}

func isBinaryWeek(s string) bool {
	if len(s) != DaysPerWeek {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

func containsToken(tokens []string, target string) bool {
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == target {
			return true
		}
	}
	return false
}

func testBit(n int64, weekdayIndex int) (bool, error) {
	mask, err := NewWeeklyMask(int(n))
	if err != nil || int64(int(n)) != n {
		return false, fmt.Errorf("%w: bitmask %d outside 0..127", ErrInvalidMask, n)
	}
	return mask.AppliesOn(weekdayIndex), nil
}
