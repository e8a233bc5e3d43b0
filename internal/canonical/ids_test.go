package canonical

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCatalogStopIDDeterministic(t *testing.T) {
	a := CatalogStopID("salem", "core-01")
	assert.Equal(t, a, CatalogStopID(" Salem ", "CORE-01"))
	assert.NotEqual(t, a, CatalogStopID("salem", "core-02"))
	assert.NotEqual(t, a, CatalogStopID("boston", "core-01"))

	parsed, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestUserStopID(t *testing.T) {
	a := UserStopID("salem", "The  Witch House", 42.521611, -70.898167)
	assert.Equal(t, a, UserStopID("SALEM", "the witch house", 42.5216112, -70.8981668))
	assert.NotEqual(t, a, UserStopID("salem", "The Witch House", 42.521612, -70.898167))
	assert.NotEqual(t, a, CatalogStopID("salem", "the witch house"))
}

func TestIsPlaceholderImage(t *testing.T) {
	tests := map[string]bool{
		"":                                 true,
		"   ":                              true,
		"/images/placeholder.jpg":          true,
		"https://cdn/PLACEHOLDER-stop.png": true,
		"https://cdn/witch-house.jpg":      false,
	}
	for url, want := range tests {
		assert.Equal(t, want, IsPlaceholderImage(url), url)
	}
}
