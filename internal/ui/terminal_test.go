package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldUseColorPrecedence(t *testing.T) {
	tests := []struct {
		noColor, force, cliColor string
		want                     bool
	}{
		{noColor: "1", force: "1", want: false},
		{noColor: "1", cliColor: "1", want: false},
		{force: "1", cliColor: "0", want: true},
		{force: "yes", want: true},
		{force: "0", cliColor: "0", want: false},
		{cliColor: "0", want: false},
	}
	for _, tt := range tests {
		t.Setenv("NO_COLOR", tt.noColor)
		t.Setenv("CLICOLOR_FORCE", tt.force)
		t.Setenv("CLICOLOR", tt.cliColor)
		assert.Equal(t, tt.want, ShouldUseColor(),
			"NO_COLOR=%q CLICOLOR_FORCE=%q CLICOLOR=%q", tt.noColor, tt.force, tt.cliColor)
	}
}

func TestShouldUseColorFallsBackToTTY(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "0")
	t.Setenv("CLICOLOR", "1")
	assert.Equal(t, IsTerminal(), ShouldUseColor())
}

func TestShouldUseEmoji(t *testing.T) {
	t.Setenv("QC_NO_EMOJI", "1")
	assert.False(t, ShouldUseEmoji())

	t.Setenv("QC_NO_EMOJI", "")
	assert.Equal(t, IsTerminal(), ShouldUseEmoji())
}

func TestTerminalWidth(t *testing.T) {
	w := TerminalWidth(72)
	if IsTerminal() {
		assert.Positive(t, w)
		return
	}
	assert.Equal(t, 72, w)
	assert.Equal(t, 0, TerminalWidth(0))
}
