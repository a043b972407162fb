package timer

import (
	"fmt"
	"sync"
	"time"
)

// Recorder is a Timer that records every command it receives. Start and
// Reset move its state the way a real timer would; everything else only
// records.
type Recorder struct {
	mu    sync.Mutex
	state State
	calls []string
	vars  map[string]string
}

// NewRecorder creates a recorder in the given state.
func NewRecorder(initial State) *Recorder {
	return &Recorder{state: initial, vars: make(map[string]string)}
}

func (r *Recorder) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("start")
	if r.state == NotRunning {
		r.state = Running
	}
}

func (r *Recorder) Split() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("split")
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("reset")
	r.state = NotRunning
}

func (r *Recorder) PauseGameTime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("pause_game_time")
}

func (r *Recorder) ResumeGameTime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("resume_game_time")
}

func (r *Recorder) SetGameTime(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(fmt.Sprintf("set_game_time %s", d))
}

// SetVariable stores the value without recording a call.
func (r *Recorder) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[name] = value
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState forces the state.
func (r *Recorder) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Calls returns the recorded commands and clears the record.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	return calls
}

// Variable returns a published variable.
func (r *Recorder) Variable(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vars[name]
	return v, ok
}
