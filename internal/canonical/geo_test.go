package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	assert.Zero(t, DistanceMeters(42.5, -70.9, 42.5, -70.9))

	// One thousandth of a degree of latitude is about 111 m everywhere.
	assert.InDelta(t, 111.19, DistanceMeters(42.5, -70.9, 42.501, -70.9), 0.1)

	// Longitude shrinks with cos(latitude).
	equator := DistanceMeters(0, 0, 0, 0.001)
	salem := DistanceMeters(42.5, 0, 42.5, 0.001)
	assert.InDelta(t, equator*0.7373, salem, 0.1)

	assert.Equal(t,
		DistanceMeters(42.52, -70.89, 42.521, -70.891),
		DistanceMeters(42.521, -70.891, 42.52, -70.89))
}
