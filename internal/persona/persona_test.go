package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"adult", Adult, false},
		{" Preteen ", Preteen, false},
		{"ADULT", Adult, false},
		{"toddler", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList("")
	require.NoError(t, err)
	assert.Equal(t, []Name{Adult}, got)

	got, err = ParseList("preteen, adult,preteen")
	require.NoError(t, err)
	assert.Equal(t, []Name{Preteen, Adult}, got)

	_, err = ParseList("adult,robot")
	assert.Error(t, err)
}

func TestCatalogIsComplete(t *testing.T) {
	for _, p := range All() {
		got, ok := Lookup(p.Name)
		require.True(t, ok, p.Name)
		assert.Equal(t, p.Name, got.Name)
		assert.NotEmpty(t, got.StyleGuidelines)
		assert.NotEmpty(t, got.BannedPatterns)
		assert.Less(t, got.MinSentences, got.MaxSentences)
		assert.Less(t, got.MinWords, got.MaxWords)
		assert.Contains(t, got.LengthInstruction(), "sentences")
	}
}
