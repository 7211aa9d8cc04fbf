package calendar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HolidaySet maps ISO dates to holiday names
type HolidaySet map[string]string

type holidayFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// Contains reports whether date is a listed public holiday
func (h HolidaySet) Contains(date time.Time) bool {
	_, ok := h[FormatDate(date)]
	return ok
}

// LoadHolidays reads a YAML holiday file
func LoadHolidays(path string) (HolidaySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holidays file: %w", err)
	}
	return ParseHolidays(data)
}

// ParseHolidays decodes the YAML holiday format. Every date must be ISO.
func ParseHolidays(data []byte) (HolidaySet, error) {
	var f holidayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse holidays file: %w", err)
	}
	set := make(HolidaySet, len(f.Holidays))
	for _, h := range f.Holidays {
		t, err := ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		set[FormatDate(t)] = h.Name
	}
	return set, nil
}
