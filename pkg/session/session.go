// Package session runs the single presentation of a verse: reveal it one
// character at a time, hold it while it is read or narrated, fade it out,
// then release the stage for the next trigger.
//
// A Session is not goroutine-safe. Every method must be called from the
// scheduler it was built with (inside a timer callback or Scheduler.Do).
package session

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

// State is the lifecycle phase of the session
type State int

const (
	Idle State = iota
	Revealing
	Waiting
	FadingOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Revealing:
		return "revealing"
	case Waiting:
		return "waiting"
	case FadingOut:
		return "fading_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View selects which text of the item is on display
type View int

const (
	Primary View = iota
	Description
)

func (v View) String() string {
	if v == Description {
		return "description"
	}
	return "primary"
}

// ParseView parses "primary" or "description"
func ParseView(name string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "primary", "poem", "verse":
		return Primary, nil
	case "description":
		return Description, nil
	}
	return Primary, fmt.Errorf("unknown view %q", name)
}

func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *View) UnmarshalText(text []byte) error {
	parsed, err := ParseView(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, Revealing, Waiting, FadingOut} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Options holds the pacing of a session
type Options struct {
	PreRevealDelay         time.Duration
	CharDelay              time.Duration
	PoemReadingTime        time.Duration // hold after the primary view when the item has no audio
	ReadingTimeIncrement   time.Duration // added to the audio length when it has
	DescriptionReadingTime time.Duration
	FadeDuration           time.Duration
	FadeStep               time.Duration
	AlphaStep              float64
	TextLengthLimit        int     // primary texts longer than this are shown offset
	TextOffset             float64 // horizontal offset applied to long or description texts
	LineBreaks             string  // runes followed by a line break when revealed
}

// DefaultOptions mirrors the tuning of the installation
func DefaultOptions() Options {
	return Options{
		PreRevealDelay:         time.Second,
		CharDelay:              50 * time.Millisecond,
		PoemReadingTime:        10 * time.Second,
		ReadingTimeIncrement:   6 * time.Second,
		DescriptionReadingTime: 15 * time.Second,
		FadeDuration:           time.Second,
		FadeStep:               50 * time.Millisecond,
		AlphaStep:              0.1,
		TextLengthLimit:        30,
		TextOffset:             100,
		LineBreaks:             "，。；？",
	}
}

// Snapshot is a read-only view of the session
type Snapshot struct {
	SessionID string  `json:"session_id,omitempty"`
	ItemID    string  `json:"item_id,omitempty"`
	State     State   `json:"state"`
	View      View    `json:"view"`
	Buffer    string  `json:"buffer"`
	Alpha     float64 `json:"alpha"`
	Title     string  `json:"title"`
	Offset    float64 `json:"offset"`
	Revealed  int     `json:"revealed"`
	Total     int     `json:"total"`
	HasDesc   bool    `json:"has_description"`
}

// Session is the one presentation slot of the world
type Session struct {
	sched  *scheduler.Scheduler
	sink   effects.Sink
	logger *slog.Logger
	opts   Options

	state   State
	view    View
	id      string
	item    *narrative.Item
	runes   []rune
	pos     int
	buffer  strings.Builder
	alpha   float64
	title   string
	offset  float64
	pending *scheduler.Timer

	onStart []func(item *narrative.Item)
	onEnd   []func(itemID string)
}

// New creates an idle session
func New(sched *scheduler.Scheduler, sink effects.Sink, logger *slog.Logger, opts Options) *Session {
	return &Session{
		sched:  sched,
		sink:   sink,
		logger: logger,
		opts:   opts,
	}
}

// OnStart registers a listener called when a session is accepted
func (s *Session) OnStart(fn func(item *narrative.Item)) {
	s.onStart = append(s.onStart, fn)
}

// OnEnd registers a listener called once the fade-out completes and the
// session is idle again
func (s *Session) OnEnd(fn func(itemID string)) {
	s.onEnd = append(s.onEnd, fn)
}

// Active reports whether a presentation is in progress
func (s *Session) Active() bool {
	return s.state != Idle
}

// State returns the current phase
func (s *Session) State() State {
	return s.state
}

// View returns the view on display
func (s *Session) View() View {
	return s.view
}

// Item returns the item being presented, or nil when idle
func (s *Session) Item() *narrative.Item {
	return s.item
}

// Snapshot copies the presentation state
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		State:     s.state,
		View:      s.view,
		Buffer:    s.buffer.String(),
		Alpha:     s.alpha,
		Title:     s.title,
		Offset:    s.offset,
		Revealed:  s.pos,
		Total:     len(s.runes),
	}
	if s.item != nil {
		snap.ItemID = s.item.ID
		snap.HasDesc = s.item.HasDescription()
	}
	return snap
}

// Start begins presenting item. It is ignored, returning false, when a
// session is already active or item is nil.
func (s *Session) Start(item *narrative.Item) bool {
	if item == nil {
		s.logger.Debug("Session start ignored, no item")
		return false
	}
	if s.state != Idle {
		s.logger.Debug("Session start ignored, already active",
			"active_item", s.item.ID,
			"requested_item", item.ID)
		return false
	}

	s.id = uuid.NewString()
	s.item = item
	s.sink.SetVisualEffectActive(effects.EffectInk, true)

	s.logger.Info("Session started",
		"session_id", s.id,
		"item_id", item.ID,
		"emotion", string(item.Emotion),
		"has_audio", item.HasAudio())

	s.beginPrimary()

	for _, fn := range s.onStart {
		fn(item)
	}
	return true
}

// SwitchTo changes the view mid-session
func (s *Session) SwitchTo(v View) bool {
	if v == Description {
		return s.SwitchToDescription()
	}
	return s.SwitchToPrimary()
}

// SwitchToDescription restarts the reveal with the item's description. It
// is only possible while revealing or waiting and when the item has one.
func (s *Session) SwitchToDescription() bool {
	if !s.switchable() || !s.item.HasDescription() {
		return false
	}
	s.logger.Debug("Switching to description", "session_id", s.id, "item_id", s.item.ID)
	s.beginDescription()
	return true
}

// SwitchToPrimary restarts the reveal with the item's primary text
func (s *Session) SwitchToPrimary() bool {
	if !s.switchable() {
		return false
	}
	s.logger.Debug("Switching to primary", "session_id", s.id, "item_id", s.item.ID)
	s.beginPrimary()
	return true
}

// A fading session is committed to finishing.
func (s *Session) switchable() bool {
	return s.item != nil && (s.state == Revealing || s.state == Waiting)
}

func (s *Session) beginPrimary() {
	s.cancelPending()
	item := s.item
	s.state = Revealing
	s.view = Primary

	target := 0.0
	if utf8.RuneCountInString(item.PrimaryText) > s.opts.TextLengthLimit {
		target = s.opts.TextOffset
	}
	s.setOffset(target)
	s.resetBuffer(item.PrimaryText)

	s.pending = s.sched.After(s.opts.PreRevealDelay, func() {
		s.sink.PlayEmotionCue(string(item.Emotion))
		if item.HasAudio() {
			s.sink.PlayNarrationAudio(item.ID)
		}
		s.revealNext()
	})
}

func (s *Session) beginDescription() {
	s.cancelPending()
	s.state = Revealing
	s.view = Description

	s.title = ""
	s.sink.SetTitleText("")
	if s.offset == 0 {
		s.setOffset(s.opts.TextOffset)
	}
	s.resetBuffer(s.item.DescriptionText)

	s.pending = s.sched.After(s.opts.PreRevealDelay, s.revealNext)
}

func (s *Session) resetBuffer(text string) {
	s.runes = []rune(text)
	s.pos = 0
	s.buffer.Reset()
	s.alpha = 0
	s.sink.RenderIncrementalText("", 0)
}

// revealNext emits one rune, then reschedules itself until the text is out
func (s *Session) revealNext() {
	if s.pos >= len(s.runes) {
		s.finishReveal()
		return
	}

	r := s.runes[s.pos]
	s.pos++
	s.buffer.WriteRune(r)
	if strings.ContainsRune(s.opts.LineBreaks, r) {
		s.buffer.WriteByte('\n')
	}
	s.alpha = math.Min(1, s.alpha+s.opts.AlphaStep)
	s.sink.RenderIncrementalText(s.buffer.String(), s.alpha)

	s.pending = s.sched.After(s.opts.CharDelay, s.revealNext)
}

func (s *Session) finishReveal() {
	var hold time.Duration
	if s.view == Primary {
		s.title = s.item.Title
		s.sink.SetTitleText(s.item.Title)
		if s.item.HasAudio() {
			hold = s.item.AudioDuration() + s.opts.ReadingTimeIncrement
		} else {
			hold = s.opts.PoemReadingTime
		}
	} else {
		hold = s.opts.DescriptionReadingTime
	}

	s.state = Waiting
	s.logger.Debug("Reveal complete",
		"session_id", s.id,
		"view", s.view.String(),
		"hold", hold)
	s.pending = s.sched.After(hold, s.beginFade)
}

func (s *Session) beginFade() {
	s.state = FadingOut
	s.sink.SetVisualEffectActive(effects.EffectInk, false)
	s.title = ""
	s.sink.SetTitleText("")

	steps := 1
	if s.opts.FadeStep > 0 && s.opts.FadeDuration > 0 {
		steps = int(math.Ceil(float64(s.opts.FadeDuration) / float64(s.opts.FadeStep)))
	}
	s.fadeStep(s.alpha, 1, steps)
}

// fadeStep ramps alpha linearly from start to 0 over steps equal intervals
func (s *Session) fadeStep(start float64, k, steps int) {
	interval := s.opts.FadeDuration / time.Duration(steps)
	s.pending = s.sched.After(interval, func() {
		s.alpha = start * (1 - float64(k)/float64(steps))
		s.sink.RenderIncrementalText(s.buffer.String(), s.alpha)
		if k < steps {
			s.fadeStep(start, k+1, steps)
			return
		}
		s.finish()
	})
}

func (s *Session) finish() {
	itemID := s.item.ID
	sessionID := s.id

	s.buffer.Reset()
	s.runes = nil
	s.pos = 0
	s.alpha = 0
	s.sink.RenderIncrementalText("", 0)
	s.setOffset(0)

	s.pending = nil
	s.item = nil
	s.id = ""
	s.view = Primary
	s.state = Idle

	s.logger.Info("Session ended", "session_id", sessionID, "item_id", itemID)

	for _, fn := range s.onEnd {
		fn(itemID)
	}
}

func (s *Session) setOffset(v float64) {
	if s.offset == v {
		return
	}
	s.offset = v
	s.sink.SetTextOffset(v)
}

func (s *Session) cancelPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
