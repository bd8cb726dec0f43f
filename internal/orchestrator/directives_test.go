package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsSilence(t *testing.T) {
	assert.True(t, ContainsSilence("[SILENCE]"))
	assert.True(t, ContainsSilence("Hello [SILENCE]"))
	assert.True(t, ContainsSilence("partial thought [SILENCE] trailing"))
	assert.False(t, ContainsSilence("nothing to see"))
	assert.False(t, ContainsSilence("[SILENT]"))
}

func TestExtractImageDirective(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantCleaned string
		wantScene   string
		wantOK      bool
	}{
		{
			name:        "directive at end",
			in:          "Here: [GEN_IMG: a sunset]",
			wantCleaned: "Here:",
			wantScene:   "a sunset",
			wantOK:      true,
		},
		{
			name:        "directive mid-text",
			in:          "Look [GEN_IMG: a stormy sea] at this",
			wantCleaned: "Look  at this",
			wantScene:   "a stormy sea",
			wantOK:      true,
		},
		{
			name:        "no directive",
			in:          "Plain response",
			wantCleaned: "Plain response",
			wantOK:      false,
		},
		{
			name:        "unclosed directive is stripped",
			in:          "Here it comes [GEN_IMG: a sunset over",
			wantCleaned: "Here it comes",
			wantOK:      false,
		},
		{
			name:        "empty scene text",
			in:          "Look [GEN_IMG: ]",
			wantCleaned: "Look",
			wantOK:      false,
		},
		{
			name:        "only first directive is honored",
			in:          "[GEN_IMG: first] and [GEN_IMG: second]",
			wantCleaned: "and [GEN_IMG: second]",
			wantScene:   "first",
			wantOK:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, scene, ok := ExtractImageDirective(tt.in)
			assert.Equal(t, tt.wantCleaned, cleaned)
			assert.Equal(t, tt.wantScene, scene)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
