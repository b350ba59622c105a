package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEvent_SortsKeys(t *testing.T) {
	line := formatEvent(SSEEvent{
		Type: "audio.narration",
		Data: map[string]interface{}{"item_id": "spring-dawn", "clip_id": "a1"},
	})
	assert.Contains(t, line, "audio.narration clip_id=a1 item_id=spring-dawn")
}

func TestFormatVerse_HardWrapsUnspacedText(t *testing.T) {
	out := formatVerse("春眠不觉晓处处闻啼鸟", 10)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 10)
	}
	assert.Equal(t, "春眠不觉晓处处闻啼鸟", strings.ReplaceAll(out, "\n", ""))
}

func TestRenderProgressBar(t *testing.T) {
	m := ConsoleUI{}
	m.verseViewport.Width = 26

	tests := []struct {
		name     string
		revealed int
		total    int
		filled   int
	}{
		{"empty", 0, 4, 0},
		{"half", 2, 4, 10},
		{"done", 4, 4, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := m.renderProgressBar(tt.revealed, tt.total)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
		})
	}

	assert.Empty(t, m.renderProgressBar(0, 0))
}
