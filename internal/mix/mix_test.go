package mix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelectionBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		minutes   int
		transport string
		count     int
		wantErr   bool
	}{
		{"below min", 30, "walk", 1, true},
		{"at min", 30, "walk", 2, false},
		{"at max", 30, "walk", 5, false},
		{"above max", 30, "walk", 6, true},
		{"drive allows more", 30, "drive", 8, false},
		{"drive above max", 30, "drive", 9, true},
		{"walking alias", 60, "walking", 8, false},
		{"driving alias", 90, "Driving", 20, false},
		{"90 walk above max", 90, "walk", 13, true},
		{"unknown length", 45, "walk", 3, true},
		{"unknown transport", 30, "bike", 3, true},
		{"zero", 60, "drive", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(tt.minutes, tt.transport, tt.count)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLimitsTable(t *testing.T) {
	for _, minutes := range Lengths {
		wmin, wmax, err := Limits(minutes, "walk")
		require.NoError(t, err)
		dmin, dmax, err := Limits(minutes, "drive")
		require.NoError(t, err)
		assert.Equal(t, MinStops, wmin)
		assert.Equal(t, MinStops, dmin)
		assert.Less(t, wmax, dmax, "walking allows fewer stops than driving at %d minutes", minutes)
	}
}
