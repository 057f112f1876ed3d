package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DayHours holds opening hours for one weekday, "HH:MM" in restaurant time.
type DayHours struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// BusinessHours describes when bookings are accepted. The restaurant operates
// in a fixed UTC+4 offset, no DST.
type BusinessHours struct {
	Days   map[string]DayHours `yaml:"days" json:"days"`
	Closed []string            `yaml:"closed" json:"closed"`
}

// DefaultBusinessHours returns the La Bella Vita schedule: 11:00-22:00 with
// late closing 23:00 on Friday and Saturday.
func DefaultBusinessHours() BusinessHours {
	days := make(map[string]DayHours, 7)
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "sunday"} {
		days[d] = DayHours{Open: "11:00", Close: "22:00"}
	}
	days["friday"] = DayHours{Open: "11:00", Close: "23:00"}
	days["saturday"] = DayHours{Open: "11:00", Close: "23:00"}
	return BusinessHours{Days: days}
}

// LoadHoursFile reads opening hours from a YAML file. An empty path yields
// the default schedule.
func LoadHoursFile(path string) (BusinessHours, error) {
	if path == "" {
		return DefaultBusinessHours(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return BusinessHours{}, err
	}
	var hours BusinessHours
	if err := yaml.Unmarshal(data, &hours); err != nil {
		return BusinessHours{}, fmt.Errorf("parse hours file: %w", err)
	}
	if err := ValidateHours(hours); err != nil {
		return BusinessHours{}, err
	}
	return hours, nil
}

// ValidateHours checks that every configured day parses and opens before it closes.
func ValidateHours(h BusinessHours) error {
	for day, dh := range h.Days {
		open, err := parseClock(dh.Open)
		if err != nil {
			return fmt.Errorf("day %s: %w", day, err)
		}
		close_, err := parseClock(dh.Close)
		if err != nil {
			return fmt.Errorf("day %s: %w", day, err)
		}
		if open >= close_ {
			return fmt.Errorf("day %s: open %s is not before close %s", day, dh.Open, dh.Close)
		}
	}
	for _, day := range h.Closed {
		if _, ok := h.Days[strings.ToLower(day)]; !ok && len(h.Days) > 0 {
			return fmt.Errorf("closed day %q is not a known weekday", day)
		}
	}
	return nil
}

// Allows reports whether the whole [start, end) interval falls inside the
// opening hours of start's weekday. Intervals crossing midnight are rejected.
func (h BusinessHours) Allows(start, end time.Time) bool {
	day := strings.ToLower(start.Weekday().String())
	for _, closed := range h.Closed {
		if strings.ToLower(closed) == day {
			return false
		}
	}

	dh, ok := h.Days[day]
	if !ok {
		return false
	}
	open, err := parseClock(dh.Open)
	if err != nil {
		return false
	}
	close_, err := parseClock(dh.Close)
	if err != nil {
		return false
	}

	if end.YearDay() != start.YearDay() || end.Year() != start.Year() {
		return false
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	return startMin >= open && endMin <= close_
}

// OpenWindow returns open/close minutes since midnight for a weekday.
func (h BusinessHours) OpenWindow(weekday time.Weekday) (int, int, bool) {
	day := strings.ToLower(weekday.String())
	for _, closed := range h.Closed {
		if strings.ToLower(closed) == day {
			return 0, 0, false
		}
	}
	dh, ok := h.Days[day]
	if !ok {
		return 0, 0, false
	}
	open, err := parseClock(dh.Open)
	if err != nil {
		return 0, 0, false
	}
	close_, err := parseClock(dh.Close)
	if err != nil {
		return 0, 0, false
	}
	return open, close_, true
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
