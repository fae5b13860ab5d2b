package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Offset is a distance from a reference price, either a percentage of the
// price or a flat amount in quote currency. Configuration values like "2%" or
// "0.01" are parsed once into an Offset so the hot path never touches
// strings.
type Offset struct {
	Percent bool
	Value   float64
}

// ParseOffset parses a percentage ("2%", "0.75%") or absolute ("0.01")
// offset value.
func ParseOffset(s string) (Offset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Offset{}, fmt.Errorf("empty offset value")
	}

	percent := strings.HasSuffix(s, "%")
	value, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return Offset{}, fmt.Errorf("invalid offset %q: %w", s, err)
	}

	if value < 0 {
		return Offset{}, fmt.Errorf("invalid offset %q: %w", s, ErrNegativeValue)
	}

	return Offset{Percent: percent, Value: value}, nil
}

// IsZero reports whether the offset was left unset.
func (o Offset) IsZero() bool {
	return o.Value == 0 && !o.Percent
}

func (o Offset) String() string {
	if o.Percent {
		return strconv.FormatFloat(o.Value, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}
