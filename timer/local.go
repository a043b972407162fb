package timer

import (
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"memwatch/internal/logging"
)

var (
	splitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memwatch_timer_splits_total",
		Help: "Total splits taken by the local timer",
	})

	gameTimePaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memwatch_timer_game_time_paused",
		Help: "1 while game time is paused",
	})

	stateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memwatch_timer_state",
		Help: "Timer state (0 not running, 1 running, 2 paused, 3 ended)",
	})
)

// Local is an in-process timer. It is safe for concurrent use.
type Local struct {
	mu  sync.Mutex
	log logging.Logger

	segments int
	state    State
	split    int
	paused   bool
	gameTime time.Duration
	vars     map[string]string
}

// NewLocal creates a timer that ends after segments splits; 0 never ends.
func NewLocal(log logging.Logger, segments int) *Local {
	t := &Local{
		log:      logging.OrNoOp(log),
		segments: segments,
		vars:     make(map[string]string),
	}
	t.publish()
	return t
}

func (t *Local) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != NotRunning {
		return
	}
	t.state = Running
	t.split = 0
	t.log.Info("timer started")
	t.publish()
}

func (t *Local) Split() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running && t.state != Paused {
		return
	}
	t.split++
	splitsTotal.Inc()
	t.log.Info("split", "index", t.split, "game_time", FormatSeconds(t.gameTime.Seconds()))
	if t.segments > 0 && t.split >= t.segments {
		t.state = Ended
		t.log.Info("run ended")
	}
	t.publish()
}

func (t *Local) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NotRunning {
		return
	}
	t.state = NotRunning
	t.split = 0
	t.paused = false
	t.gameTime = 0
	t.log.Info("timer reset")
	t.publish()
}

// Pause pauses the real-time clock of a running timer.
func (t *Local) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running {
		t.state = Paused
		t.publish()
	}
}

// Resume resumes a paused timer.
func (t *Local) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Paused {
		t.state = Running
		t.publish()
	}
}

func (t *Local) PauseGameTime() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		t.paused = true
		t.log.Debug("game time paused")
		t.publish()
	}
}

func (t *Local) ResumeGameTime() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		t.paused = false
		t.log.Debug("game time resumed")
		t.publish()
	}
}

func (t *Local) SetGameTime(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gameTime = d
}

func (t *Local) SetVariable(name, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.vars[name] != value {
		t.log.Debug("variable", "name", name, "value", value)
	}
	t.vars[name] = value
}

func (t *Local) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SplitIndex returns the number of splits taken in the current run.
func (t *Local) SplitIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.split
}

// GameTimePaused reports whether game time is paused.
func (t *Local) GameTimePaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// GameTime returns the last game time set.
func (t *Local) GameTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gameTime
}

// Variables returns a copy of the published variables.
func (t *Local) Variables() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.vars)
}

// publish must be called with mu held.
func (t *Local) publish() {
	stateGauge.Set(float64(t.state))
	if t.paused {
		gameTimePaused.Set(1)
	} else {
		gameTimePaused.Set(0)
	}
}
