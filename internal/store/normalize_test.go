package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOptionalText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"empty", "", nil},
		{"spaces", "   ", nil},
		{"tabs and newlines", "\t\n", nil},
		{"trimmed", "  hello  ", strPtr("hello")},
		{"plain", "hello", strPtr("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOptionalText(tt.input))
		})
	}
}

func TestNormalizePtr(t *testing.T) {
	assert.Nil(t, NormalizePtr(nil))
	assert.Nil(t, NormalizePtr(strPtr("  ")))
	assert.Equal(t, "x", *NormalizePtr(strPtr(" x ")))
}

func TestFinishProgress(t *testing.T) {
	assert.Equal(t, 100, finishProgress(JobReady, 40))
	assert.Equal(t, 100, finishProgress(JobReadyWithWarnings, 99))
	assert.Equal(t, 40, finishProgress(JobFailed, 40))
}

func strPtr(s string) *string { return &s }
