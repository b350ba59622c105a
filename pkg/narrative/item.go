// Package narrative holds the verses shown at each site and the policy that
// picks one for the current environment.
package narrative

import (
	"strings"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/environment"
	"golang.org/x/text/unicode/norm"
)

// Emotion tags the mood of a verse; the host plays a matching cue
type Emotion string

const (
	EmotionNone     Emotion = ""
	EmotionConfused Emotion = "confused"
	EmotionFeared   Emotion = "feared"
	EmotionRelaxed  Emotion = "relaxed"
	EmotionSad      Emotion = "sad"
)

// Valid reports whether e is a known emotion
func (e Emotion) Valid() bool {
	switch e {
	case EmotionNone, EmotionConfused, EmotionFeared, EmotionRelaxed, EmotionSad:
		return true
	}
	return false
}

// Condition restricts an item to a season and weather. Zero values match anything.
type Condition struct {
	Season  environment.Season  `json:"season,omitempty"`
	Weather environment.Weather `json:"weather,omitempty"`
}

// Matches reports whether the condition holds in the given environment
func (c Condition) Matches(env environment.State) bool {
	return (c.Season == environment.SeasonAny || c.Season == env.Season) &&
		(c.Weather == environment.WeatherAny || c.Weather == env.Weather)
}

// Item is one verse. Everything but the shown flag is immutable after load.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	PrimaryText     string    `json:"text"`
	DescriptionText string    `json:"description,omitempty"`
	AudioSeconds    float64   `json:"audio_seconds,omitempty"` // length of the narration clip, 0 if none
	When            Condition `json:"when"`
	Emotion         Emotion   `json:"emotion,omitempty"`

	shown bool
}

// Shown reports whether the selector has already presented this item in the current run
func (i *Item) Shown() bool {
	return i.shown
}

// HasDescription reports whether the item can switch to a description view
func (i *Item) HasDescription() bool {
	return i.DescriptionText != ""
}

// HasAudio reports whether the item carries narration audio
func (i *Item) HasAudio() bool {
	return i.AudioSeconds > 0
}

// AudioDuration is the narration length
func (i *Item) AudioDuration() time.Duration {
	return time.Duration(i.AudioSeconds * float64(time.Second))
}

// Normalize composes text to NFC so that each revealed rune is one visible character
func (i *Item) Normalize() {
	i.ID = strings.TrimSpace(i.ID)
	i.Title = norm.NFC.String(strings.TrimSpace(i.Title))
	i.PrimaryText = norm.NFC.String(i.PrimaryText)
	i.DescriptionText = norm.NFC.String(i.DescriptionText)
}
