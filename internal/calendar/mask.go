package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Weekday indices, Monday-origin. Bit i of a WeeklyMask is weekday index i.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of meaningful bits in a WeeklyMask
const DaysPerWeek = 7

// ErrInvalidMask is returned when a numeric value does not fit in seven bits
var ErrInvalidMask = errors.New("invalid weekly mask")

// WeeklyMask is a 7-bit per-weekday running pattern, LSB = Monday.
type WeeklyMask uint8

// AllWeek runs every day
const AllWeek WeeklyMask = 1<<DaysPerWeek - 1

// NewWeeklyMask validates v as a 7-bit mask
func NewWeeklyMask(v int) (WeeklyMask, error) {
	if v < 0 || v > int(AllWeek) {
		return 0, fmt.Errorf("%w: %d outside 0..127", ErrInvalidMask, v)
	}
	return WeeklyMask(v), nil
}

// MaskOf builds a mask from Monday-origin weekday indices. Out-of-range indices are ignored.
func MaskOf(indices ...int) WeeklyMask {
	var m WeeklyMask
	for _, i := range indices {
		if i >= 0 && i < DaysPerWeek {
			m |= 1 << uint(i)
		}
	}
	return m
}

// AppliesOnWeekday reports whether bit weekdayIndex (0=Monday..6=Sunday) is set
func AppliesOnWeekday(mask WeeklyMask, weekdayIndex int) bool {
	if weekdayIndex < 0 || weekdayIndex >= DaysPerWeek {
		return false
	}
	return mask&(1<<uint(weekdayIndex)) != 0
}

// AppliesOn is the method form of AppliesOnWeekday
func (m WeeklyMask) AppliesOn(weekdayIndex int) bool {
	return AppliesOnWeekday(m, weekdayIndex)
}

// Valid reports whether only the seven weekday bits are used
func (m WeeklyMask) Valid() bool {
	return m <= AllWeek
}

// Days returns the 1-based weekday numbers (1=Monday..7=Sunday) the mask runs on
func (m WeeklyMask) Days() []int {
	days := make([]int, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		if m.AppliesOn(i) {
			days = append(days, i+1)
		}
	}
	return days
}

// String renders the mask as the 7-character '0'/'1' form, Monday first
func (m WeeklyMask) String() string {
	var b strings.Builder
	for i := 0; i < DaysPerWeek; i++ {
		if m.AppliesOn(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// WeekdayIndex converts a date to its Monday-origin weekday index
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}
