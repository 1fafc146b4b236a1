package entities

import (
	"fmt"
	"strings"
)

// CO2Level is the categorical CO2 reading of an observation
type CO2Level uint8

const (
	// CO2Unrecorded marks an observation without a CO2 reading
	CO2Unrecorded CO2Level = iota
	CO2Low
	CO2Medium
	CO2High
)

var co2Names = [...]string{
	CO2Unrecorded: "",
	CO2Low:        "low",
	CO2Medium:     "medium",
	CO2High:       "high",
}

// ParseCO2Level converts "low", "medium" or "high" (any case) into a CO2Level.
// An empty string is CO2Unrecorded.
func ParseCO2Level(s string) (CO2Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return CO2Unrecorded, nil
	case "low":
		return CO2Low, nil
	case "medium":
		return CO2Medium, nil
	case "high":
		return CO2High, nil
	}
	return CO2Unrecorded, fmt.Errorf("invalid CO2 level %q: must be low, medium or high", s)
}

func (l CO2Level) String() string {
	if int(l) < len(co2Names) {
		return co2Names[l]
	}
	return fmt.Sprintf("CO2Level(%d)", uint8(l))
}

// Recorded reports whether the observation carries a CO2 reading
func (l CO2Level) Recorded() bool {
	return l != CO2Unrecorded
}

// MarshalText implements encoding.TextMarshaler
func (l CO2Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *CO2Level) UnmarshalText(text []byte) error {
	parsed, err := ParseCO2Level(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
