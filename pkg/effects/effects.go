// Package effects declares the side effects the engine asks its host to perform.
// All calls are fire-and-forget; implementations must not block the scheduler.
package effects

import "fmt"

// AmbientKind selects which ambient audio bed a PlayAmbient call targets
type AmbientKind int

const (
	AmbientSeason AmbientKind = iota
	AmbientWeather
)

func (k AmbientKind) String() string {
	switch k {
	case AmbientSeason:
		return "season"
	case AmbientWeather:
		return "weather"
	default:
		return fmt.Sprintf("ambient(%d)", int(k))
	}
}

// Well-known effect and clip identifiers
const (
	EffectRain = "rain"
	EffectInk  = "ink"

	ClipGrow = "grow"
	ClipDig  = "dig"
)

// FarmingPointEffect is the marker effect shown on an unfinished plot
func FarmingPointEffect(plotID string) string {
	return "farming-point:" + plotID
}

// TriggerEffect is the particle marker of an enabled trigger site
func TriggerEffect(siteID string) string {
	return "trigger:" + siteID
}

// ActionEffect is the effect held on while an action runs
func ActionEffect(actionID string) string {
	return "action:" + actionID
}

// RewardEffect is the burst played when a reward slot is revealed
func RewardEffect(slotID string) string {
	return "reward:" + slotID
}

// Audio plays sounds
type Audio interface {
	PlayAmbient(kind AmbientKind, index int)
	PlayEmotionCue(emotion string)
	PlayNarrationAudio(itemID string)
	PlayOneShot(clipID string)
}

// Visuals toggles scene effects. Calls are assumed idempotent.
type Visuals interface {
	SetVisualEffectActive(effectID string, active bool)
	RevealRewardSlot(index int)
}

// Presenter receives the text being revealed
type Presenter interface {
	RenderIncrementalText(buffer string, alpha float64)
	SetTitleText(text string)
	SetTextOffset(offset float64)
}

// Sink is a host that handles every kind of effect
type Sink interface {
	Audio
	Visuals
	Presenter
}

// Nop discards every effect
type Nop struct{}

var _ Sink = Nop{}

func (Nop) PlayAmbient(AmbientKind, int)          {}
func (Nop) PlayEmotionCue(string)                 {}
func (Nop) PlayNarrationAudio(string)             {}
func (Nop) PlayOneShot(string)                    {}
func (Nop) SetVisualEffectActive(string, bool)    {}
func (Nop) RevealRewardSlot(int)                  {}
func (Nop) RenderIncrementalText(string, float64) {}
func (Nop) SetTitleText(string)                   {}
func (Nop) SetTextOffset(float64)                 {}

// Multi forwards every effect to each sink in order
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) PlayAmbient(kind AmbientKind, index int) {
	for _, s := range m {
		s.PlayAmbient(kind, index)
	}
}

func (m multi) PlayEmotionCue(emotion string) {
	for _, s := range m {
		s.PlayEmotionCue(emotion)
	}
}

func (m multi) PlayNarrationAudio(itemID string) {
	for _, s := range m {
		s.PlayNarrationAudio(itemID)
	}
}

func (m multi) PlayOneShot(clipID string) {
	for _, s := range m {
		s.PlayOneShot(clipID)
	}
}

func (m multi) SetVisualEffectActive(effectID string, active bool) {
	for _, s := range m {
		s.SetVisualEffectActive(effectID, active)
	}
}

func (m multi) RevealRewardSlot(index int) {
	for _, s := range m {
		s.RevealRewardSlot(index)
	}
}

func (m multi) RenderIncrementalText(buffer string, alpha float64) {
	for _, s := range m {
		s.RenderIncrementalText(buffer, alpha)
	}
}

func (m multi) SetTitleText(text string) {
	for _, s := range m {
		s.SetTitleText(text)
	}
}

func (m multi) SetTextOffset(offset float64) {
	for _, s := range m {
		s.SetTextOffset(offset)
	}
}
