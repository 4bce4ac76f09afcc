package navgate

import (
	"sync"
	"time"
)

// DefaultMinLoadingDisplay is how long a loading state stays visible even if
// the underlying work finishes sooner.
const DefaultMinLoadingDisplay = 1500 * time.Millisecond

// GateTimer is the deadline handle the gate holds between Begin and the
// minimum display elapsing. time.Timer satisfies it.
type GateTimer interface {
	Stop() bool
}

type gateSubscriber struct {
	id int
	fn func(visible bool)
}

// LoadingGate enforces a minimum visible duration for loading episodes. An
// episode opens with Begin and closes only when both the work finished
// (Finish) and the deadline fired, whichever comes last. Re-entering loading
// while an episode is open does not stack a second timer; the original
// deadline keeps governing the episode.
type LoadingGate struct {
	mu         sync.Mutex
	minDisplay time.Duration
	newTimer   func(d time.Duration, fn func()) GateTimer
	timer      GateTimer
	episode    uint64
	active     bool
	elapsed    bool
	cleared    bool
	subs       []gateSubscriber
	nextSub    int

	logger   Logger
	provider LoggerProvider
}

// GateOption configures a LoadingGate.
type GateOption func(*LoadingGate)

// WithGateMinDisplay overrides the minimum visible duration. Zero or negative
// disables the deadline entirely.
func WithGateMinDisplay(d time.Duration) GateOption {
	return func(g *LoadingGate) {
		g.minDisplay = d
	}
}

// WithGateTimerFunc swaps the deadline timer factory, letting tests drive the
// deadline by hand.
func WithGateTimerFunc(fn func(d time.Duration, callback func()) GateTimer) GateOption {
	return func(g *LoadingGate) {
		if fn != nil {
			g.newTimer = fn
		}
	}
}

// WithGateLogger sets the logger used by the gate.
func WithGateLogger(logger Logger) GateOption {
	return func(g *LoadingGate) {
		if logger != nil {
			_, g.logger = ResolveLogger("navgate.loading_gate", nil, logger)
		}
	}
}

// WithGateLoggerProvider resolves a scoped logger from the provider.
func WithGateLoggerProvider(provider LoggerProvider) GateOption {
	return func(g *LoadingGate) {
		if provider != nil {
			g.provider, g.logger = ResolveLogger("navgate.loading_gate", provider, g.logger)
		}
	}
}

// NewLoadingGate creates a gate with the default minimum display duration.
func NewLoadingGate(opts ...GateOption) *LoadingGate {
	g := &LoadingGate{
		minDisplay: DefaultMinLoadingDisplay,
		newTimer: func(d time.Duration, callback func()) GateTimer {
			return time.AfterFunc(d, callback)
		},
	}
	g.provider, g.logger = ResolveLogger("navgate.loading_gate", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Begin opens a loading episode, arming the deadline timer. Calling Begin
// while an episode is open marks the work as unfinished again but keeps the
// existing deadline; at most one timer is ever outstanding.
func (g *LoadingGate) Begin() {
	g.mu.Lock()
	if g.active {
		g.cleared = false
		g.mu.Unlock()
		return
	}

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}

	g.active = true
	g.cleared = false
	g.elapsed = g.minDisplay <= 0
	g.episode++

	if !g.elapsed {
		episode := g.episode
		g.timer = g.newTimer(g.minDisplay, func() {
			g.deadline(episode)
		})
	}

	subs := g.copySubsLocked()
	g.mu.Unlock()

	notifyGate(subs, true)
}

// Finish marks the underlying work as done. The loader hides immediately if
// the deadline already fired, otherwise when it does.
func (g *LoadingGate) Finish() {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}

	g.cleared = true
	if !g.elapsed {
		g.mu.Unlock()
		return
	}

	g.hideLocked()
	subs := g.copySubsLocked()
	g.mu.Unlock()

	notifyGate(subs, false)
}

// deadline runs when the minimum display timer fires. Stale timers from a
// previous episode are ignored.
func (g *LoadingGate) deadline(episode uint64) {
	g.mu.Lock()
	if episode != g.episode || !g.active {
		g.mu.Unlock()
		return
	}

	g.elapsed = true
	if !g.cleared {
		g.mu.Unlock()
		return
	}

	g.hideLocked()
	subs := g.copySubsLocked()
	g.mu.Unlock()

	notifyGate(subs, false)
}

func (g *LoadingGate) hideLocked() {
	g.active = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Visible reports whether the loader should be on screen.
func (g *LoadingGate) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Elapsed reports whether the minimum display requirement is satisfied. With
// no open episode there is nothing to hold back, so it reports true.
func (g *LoadingGate) Elapsed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return true
	}
	return g.elapsed
}

// Subscribe registers fn to run on visibility transitions. The returned
// function removes the subscription.
func (g *LoadingGate) Subscribe(fn func(visible bool)) func() {
	if fn == nil {
		return func() {}
	}

	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs = append(g.subs, gateSubscriber{id: id, fn: fn})
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, sub := range g.subs {
			if sub.id == id {
				g.subs = append(g.subs[:i], g.subs[i+1:]...)
				return
			}
		}
	}
}

func (g *LoadingGate) copySubsLocked() []gateSubscriber {
	subs := make([]gateSubscriber, len(g.subs))
	copy(subs, g.subs)
	return subs
}

func notifyGate(subs []gateSubscriber, visible bool) {
	for _, sub := range subs {
		sub.fn(visible)
	}
}
