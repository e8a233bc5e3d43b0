package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "echojam dev\n", out)
}

func TestValidateMix(t *testing.T) {
	out, err := run(t, "validate-mix", "--length", "60", "--transport", "drive", "--count", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 14 stops fits a 60-minute drive tour (2-14 stops)")

	_, err = run(t, "validate-mix", "--length", "30", "--transport", "walk", "--count", "6")
	assert.Error(t, err)

	_, err = run(t, "validate-mix", "--length", "45", "--transport", "walk", "--count", "3")
	assert.Error(t, err)
}

func TestListVoices(t *testing.T) {
	out, err := run(t, "list-voices", "polly")
	require.NoError(t, err)
	assert.Contains(t, out, "POLLY")
	assert.Contains(t, out, "Matthew")

	_, err = run(t, "list-voices", "gemini")
	assert.Error(t, err)
}

func TestAssetSummaries(t *testing.T) {
	assert.Equal(t, "-", assetStatus(nil))
	assert.Equal(t, "-", audioSummary(&store.NarrationAsset{}))

	long := "https://cdn.test/narration/a-very-long-route-identifier/adult/a-very-long-stop-id.mp3"
	got := audioSummary(&store.NarrationAsset{AudioURL: &long, Status: store.AssetReady})
	assert.Len(t, got, 60)
	assert.Equal(t, "ready", assetStatus(&store.NarrationAsset{Status: store.AssetReady}))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}
