// Package mix validates how many stops a user may pick for a custom tour.
package mix

import (
	"fmt"
	"strings"
)

// MinStops is the fewest stops any mix may contain.
const MinStops = 2

// Transport is the way a tour is travelled.
type Transport string

const (
	Walk  Transport = "walk"
	Drive Transport = "drive"
)

// ParseTransport accepts walk/walking and drive/driving.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "walk", "walking":
		return Walk, nil
	case "drive", "driving":
		return Drive, nil
	}
	return "", fmt.Errorf("unknown transport mode %q: choose walk or drive", s)
}

type key struct {
	minutes   int
	transport Transport
}

// Walking covers less ground per minute than driving.
var maxStopsByTour = map[key]int{
	{30, Walk}:  5,
	{30, Drive}: 8,
	{60, Walk}:  8,
	{60, Drive}: 14,
	{90, Walk}:  12,
	{90, Drive}: 20,
}

// Lengths lists the supported tour lengths in minutes.
var Lengths = []int{30, 60, 90}

// Limits returns the min and max stop counts for a tour length and transport mode.
func Limits(lengthMinutes int, transport string) (minStops, maxStops int, err error) {
	t, err := ParseTransport(transport)
	if err != nil {
		return 0, 0, err
	}
	m, ok := maxStopsByTour[key{lengthMinutes, t}]
	if !ok {
		return 0, 0, fmt.Errorf("unsupported tour length %d minutes: choose 30, 60 or 90", lengthMinutes)
	}
	return MinStops, m, nil
}

// ValidateSelection returns an error unless count is within the bounds for
// the given tour length and transport mode.
func ValidateSelection(lengthMinutes int, transport string, count int) error {
	minStops, maxStops, err := Limits(lengthMinutes, transport)
	if err != nil {
		return err
	}
	if count < minStops {
		return fmt.Errorf("select at least %d stops (got %d)", minStops, count)
	}
	if count > maxStops {
		return fmt.Errorf("a %d-minute %s tour allows at most %d stops (got %d)", lengthMinutes, transport, maxStops, count)
	}
	return nil
}
