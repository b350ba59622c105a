package effects

import "sync"

// Call is one recorded effect invocation
type Call struct {
	Method string
	Args   []any
}

// Recorder captures every effect it receives. Used by tests and by the
// in-memory session view.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of every recorded call
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Named returns the recorded calls of one method
func (r *Recorder) Named(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times a method was called
func (r *Recorder) Count(method string) int {
	return len(r.Named(method))
}

// Last returns the most recent call of a method
func (r *Recorder) Last(method string) (Call, bool) {
	calls := r.Named(method)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

// Reset forgets every recorded call
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) PlayAmbient(kind AmbientKind, index int) {
	r.record("PlayAmbient", kind, index)
}

func (r *Recorder) PlayEmotionCue(emotion string) {
	r.record("PlayEmotionCue", emotion)
}

func (r *Recorder) PlayNarrationAudio(itemID string) {
	r.record("PlayNarrationAudio", itemID)
}

func (r *Recorder) PlayOneShot(clipID string) {
	r.record("PlayOneShot", clipID)
}

func (r *Recorder) SetVisualEffectActive(effectID string, active bool) {
	r.record("SetVisualEffectActive", effectID, active)
}

func (r *Recorder) RevealRewardSlot(index int) {
	r.record("RevealRewardSlot", index)
}

func (r *Recorder) RenderIncrementalText(buffer string, alpha float64) {
	r.record("RenderIncrementalText", buffer, alpha)
}

func (r *Recorder) SetTitleText(text string) {
	r.record("SetTitleText", text)
}

func (r *Recorder) SetTextOffset(offset float64) {
	r.record("SetTextOffset", offset)
}
