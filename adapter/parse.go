package adapter

import (
	"fmt"
	"strconv"
)

// parseFloat converts the string-encoded numbers most venue APIs emit.
func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}

// optFloat converts an optional string field, returning nil when the venue
// omitted it so downstream consumers can tell unknown from zero.
func optFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
